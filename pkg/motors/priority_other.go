//go:build !linux

package motors

import "github.com/goliath-teleop/core/pkg/log"

func raisePriority(log.Logger) {}
