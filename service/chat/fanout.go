package chat

import (
	"Parley/tools/safe"
)

type fanoutJob struct {
	conns   []*Client
	payload []byte
}

// Fanout is a small worker pool pushing one payload to many connections.
type Fanout struct {
	jobs chan fanoutJob
}

func NewFanout(workers, queue int) *Fanout {
	f := &Fanout{jobs: make(chan fanoutJob, queue)}
	for i := 0; i < workers; i++ {
		safe.Go(f.worker)
	}
	return f
}

func (f *Fanout) worker() {
	for job := range f.jobs {
		for _, c := range job.conns {
			// Disconnected or slow clients lose the frame; the mailbox
			// leg is their catch-up path.
			c.TrySend(job.payload)
		}
	}
}

func (f *Fanout) Broadcast(conns []*Client, payload []byte) {
	if len(conns) == 0 || len(payload) == 0 {
		return
	}
	f.jobs <- fanoutJob{conns: conns, payload: payload}
}
