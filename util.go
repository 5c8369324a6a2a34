package oncegate

import (
	"log"
	"path"
	"path/filepath"
)

func Ptr[T any](v T) *T {
	return &v
}

func Must1(err error) {
	if err != nil {
		log.Panic(err)
	}
}

func Must2[T any](result T, err error) T {
	if err != nil {
		log.Panic(err)
	}
	return result
}

func PathJoin(prefix, suffix string) string {
	if path.IsAbs(suffix) {
		return suffix
	}
	return filepath.Join(prefix, suffix)
}
