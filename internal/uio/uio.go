// Package uio locates Userspace I/O devices through their sysfs metadata.
// PetaLinux exposes each generic-uio node as /dev/uioN with the physical
// base address and size of map0 published under /sys/class/uio/uioN/maps.
package uio

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const sysClassUIO = "/sys/class/uio"

// Device describes one discovered UIO node.
type Device struct {
	Name string // device tree node name, e.g. "v_proc_ss"
	Path string // character device path, e.g. "/dev/uio4"
	Addr uint64 // physical base address of map0
	Size int    // span of map0 in bytes
}

// FindByAddr returns the UIO device whose first map covers the given
// physical base address.
func FindByAddr(addr uint64) (*Device, error) {
	dev, err := find(sysClassUIO, func(d *Device) bool { return d.Addr == addr })
	if err != nil {
		return nil, err
	}
	if dev == nil {
		return nil, errors.Errorf("no uio device at physical address 0x%08x", addr)
	}
	return dev, nil
}

// FindByName returns the first UIO device whose name contains any of the
// given fragments.
func FindByName(fragments ...string) (*Device, error) {
	dev, err := find(sysClassUIO, func(d *Device) bool {
		for _, frag := range fragments {
			if strings.Contains(d.Name, frag) {
				return true
			}
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	if dev == nil {
		return nil, errors.Errorf("no uio device named like %v", fragments)
	}
	return dev, nil
}

func find(root string, match func(*Device) bool) (*Device, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", root)
	}

	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "uio") {
			continue
		}
		dev, err := describe(root, e.Name())
		if err != nil {
			// Nodes without map0 metadata are not candidates.
			continue
		}
		if match(dev) {
			return dev, nil
		}
	}
	return nil, nil
}

func describe(root, node string) (*Device, error) {
	name, err := readTrimmed(filepath.Join(root, node, "name"))
	if err != nil {
		return nil, err
	}
	addrStr, err := readTrimmed(filepath.Join(root, node, "maps", "map0", "addr"))
	if err != nil {
		return nil, err
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(addrStr, "0x"), 16, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s map0 addr %q", node, addrStr)
	}

	dev := &Device{
		Name: name,
		Path: "/dev/" + node,
		Addr: addr,
	}

	// Size is optional metadata; discovery still succeeds without it.
	if sizeStr, err := readTrimmed(filepath.Join(root, node, "maps", "map0", "size")); err == nil {
		if size, err := strconv.ParseUint(strings.TrimPrefix(sizeStr, "0x"), 16, 32); err == nil {
			dev.Size = int(size)
		}
	}
	return dev, nil
}

func readTrimmed(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
