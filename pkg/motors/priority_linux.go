package motors

import (
	"golang.org/x/sys/unix"

	"github.com/goliath-teleop/core/pkg/log"
)

// controlNice is the niceness requested for the control thread.
const controlNice = -10

// raisePriority lowers the calling thread's niceness. Needs CAP_SYS_NICE;
// without it the thread keeps the default priority.
func raisePriority(logger log.Logger) {
	tid := unix.Gettid()
	if err := unix.Setpriority(unix.PRIO_PROCESS, tid, controlNice); err != nil {
		logger.Debugf("Control thread %d keeps default priority: %v", tid, err)
		return
	}
	logger.Debugf("Control thread %d running at nice %d", tid, controlNice)
}
