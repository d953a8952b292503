package util

import (
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
)

func SetupInterruptHandler(archiveDir string) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		fmt.Println("\nInterrupt received. Cleaning up...")

		CleanupStagedFiles(archiveDir)
		fmt.Println("Exiting due to interrupt.")

		os.Exit(1)
	}()
}

// CleanupStagedFiles removes .tmp files an interrupted commit left behind.
// Finished entries are never touched; a commit only renames temps away
// once every artifact staged cleanly.
func CleanupStagedFiles(archiveDir string) {
	_ = filepath.WalkDir(archiveDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), ".tmp") {
			if rmErr := os.Remove(path); rmErr != nil {
				fmt.Printf("Error cleaning up %s: %v\n", path, rmErr)
			} else {
				fmt.Printf("Removed %s\n", path)
			}
		}
		return nil
	})
}
