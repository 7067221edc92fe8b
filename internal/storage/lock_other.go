//go:build !unix

package storage

import "os"

// Advisory file locks are unavailable here; the in-process mutex in Update
// still serializes writers within one server.

func lockShared(*os.File) error { return nil }

func lockExclusive(*os.File) error { return nil }

func unlock(*os.File) {}
