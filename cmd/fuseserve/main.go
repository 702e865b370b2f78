// Command fuseserve mounts an ext2 disk image at a real mountpoint using
// go-fuse, so the filesystem built in this module can be driven by
// ordinary host tools (ls, cat, cp) instead of only the vfs.VFS Go API.
package main

import (
	"flag"
	"log"

	gofuse "github.com/hanwen/go-fuse/v2/fs"

	"github.com/nanos-project/ext2fs/blockdev/filedev"
	"github.com/nanos-project/ext2fs/vfs"
)

func main() {
	image := flag.String("image", "", "path to an ext2 disk image")
	mountpoint := flag.String("mountpoint", "", "directory to mount the filesystem on")
	readOnly := flag.Bool("readonly", false, "mount read-only")
	debug := flag.Bool("debug", false, "log every FUSE operation")
	flag.Parse()

	if *image == "" || *mountpoint == "" {
		log.Fatal("fuseserve: must pass -image and -mountpoint")
	}

	device, err := filedev.Open("image", *image, *readOnly)
	if err != nil {
		log.Fatalf("fuseserve: opening %q: %s", *image, err)
	}
	defer device.Close()

	v := vfs.New()
	if err := v.MountRoot(device); err != nil {
		log.Fatalf("fuseserve: mounting %q: %s", *image, err)
	}

	root := &ext2Root{vfs: v}
	opts := &gofuse.Options{}
	opts.Debug = *debug

	server, err := gofuse.Mount(*mountpoint, root.newNode("/"), opts)
	if err != nil {
		log.Fatalf("fuseserve: mount on %q: %s", *mountpoint, err)
	}

	log.Printf("fuseserve: %s mounted on %s", *image, *mountpoint)
	server.Wait()
}
