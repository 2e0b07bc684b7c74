package store

import "github.com/xchd-project/xchd/logger"

var log, _ = logger.Get(logger.SubsystemTags.MEMP)
