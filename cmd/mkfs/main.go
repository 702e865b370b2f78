// Command mkfs formats a host file as an ext2 revision-0 filesystem image:
// flag-driven, creates the backing file, and hands it to ext2.Format.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"golang.org/x/term"

	"github.com/nanos-project/ext2fs/blockdev"
	"github.com/nanos-project/ext2fs/blockdev/cryptodev"
	"github.com/nanos-project/ext2fs/blockdev/filedev"
	"github.com/nanos-project/ext2fs/filesystem/ext2"
)

// readPassphrase prompts on the controlling terminal with echo disabled, the
// same mkfs.luks/cryptsetup convention. Falls back to a plain stdin read
// when stdin isn't a terminal (e.g. piped in from a test or script).
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return string(b), nil
	}
	var line string
	if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return line, nil
}

// saltPath is where the per-image salt is persisted, alongside the image
// itself; cryptodev has no on-disk header of its own to carry it.
func saltPath(imagePath string) string { return imagePath + ".salt" }

// openDevice returns the device to format and the underlying *filedev.Device
// to close when done; cryptodev.Device has no Close of its own, so the
// caller always closes the host file handle directly.
func openDevice(filename string, sizeMB int64, encrypt bool) (blockdev.Device, *filedev.Device, error) {
	under, err := filedev.Create("image", filename, sizeMB*1024*1024)
	if err != nil {
		return nil, nil, fmt.Errorf("creating image: %w", err)
	}
	if !encrypt {
		return under, under, nil
	}
	passphrase, err := readPassphrase("passphrase: ")
	if err != nil {
		under.Close()
		return nil, nil, err
	}
	salt, err := cryptodev.NewSalt()
	if err != nil {
		under.Close()
		return nil, nil, fmt.Errorf("generating salt: %w", err)
	}
	if err := os.WriteFile(saltPath(filename), salt, 0600); err != nil {
		under.Close()
		return nil, nil, fmt.Errorf("writing salt file: %w", err)
	}
	key := cryptodev.DeriveKey(passphrase, salt)
	enc, err := cryptodev.New(under, key)
	if err != nil {
		under.Close()
		return nil, nil, fmt.Errorf("wrapping device: %w", err)
	}
	return enc, under, nil
}

func run(filename *string, sizeMB *int64, blockSize *uint, inodesPerGroup *uint, encrypt *bool) error {
	if *filename == "" {
		return fmt.Errorf("must pass -filename")
	}
	device, under, err := openDevice(*filename, *sizeMB, *encrypt)
	if err != nil {
		return err
	}
	defer under.Close()

	_, err = ext2.Format(device, ext2.Params{
		BlockSize:      uint32(*blockSize),
		InodesPerGroup: uint32(*inodesPerGroup),
	})
	if err != nil {
		return fmt.Errorf("formatting %q: %w", *filename, err)
	}
	return nil
}

func main() {
	filename := flag.String("filename", "", "path to the image file to create")
	sizeMB := flag.Int64("size-mb", 16, "image size in megabytes")
	blockSize := flag.Uint("block-size", 1024, "filesystem block size (1024, 2048, or 4096)")
	inodesPerGroup := flag.Uint("inodes-per-group", 0, "inodes per block group (0 picks a default)")
	encrypt := flag.Bool("encrypt", false, "encrypt the image with a passphrase-derived key (writes filename.salt)")
	flag.Parse()

	if err := run(filename, sizeMB, blockSize, inodesPerGroup, encrypt); err != nil {
		log.Fatalf("mkfs: %s", err)
	}
	fmt.Printf("formatted %s\n", *filename)
}
