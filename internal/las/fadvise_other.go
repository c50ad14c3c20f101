//go:build !linux

package las

import "os"

func fadviseSequential(*os.File) {}
