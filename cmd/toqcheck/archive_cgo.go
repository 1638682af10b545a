//go:build cgo

package main

import "github.com/dusk-indust/toqcheck/internal/store"

func openArchive(path string) (store.Store, error) {
	return store.NewKuzuFileStore(path)
}
