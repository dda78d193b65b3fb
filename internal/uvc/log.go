package uvc

import "github.com/hwx-sodo/petalinux-uvc-app/internal/logging"

var log = logging.DefaultLogger.WithTag("uvc")
