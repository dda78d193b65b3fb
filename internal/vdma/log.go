package vdma

import "github.com/hwx-sodo/petalinux-uvc-app/internal/logging"

var log = logging.DefaultLogger.WithTag("vdma")
