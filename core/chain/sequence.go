package chain

// Sequence serializes a stream of work through a single goroutine, so
// nothing submitted to it ever runs concurrently with anything else
// submitted to the same Sequence. No teacher analog — the teacher
// protects its DAG map with a bare sync.Mutex, sufficient for guarding
// one data structure, but §5's global sequence orders distinct
// entrypoints (GenerateBlock, ReceiveBlock, DeleteLastBlock, fork
// recovery) against each other, which a single mutex around each of them
// individually wouldn't give: a serializing work queue is the natural
// promotion, modeled on the standard single-goroutine-owns-the-resource
// idiom.
type Sequence struct {
	work chan func()
	stop chan struct{}
}

// NewSequence starts a Sequence's draining goroutine.
func NewSequence() *Sequence {
	s := &Sequence{work: make(chan func()), stop: make(chan struct{})}
	go s.loop()
	return s
}

func (s *Sequence) loop() {
	for {
		select {
		case fn := <-s.work:
			fn()
		case <-s.stop:
			return
		}
	}
}

// Run submits fn and blocks until it has run to completion, returning its
// error. Concurrent callers queue behind one another; fn is guaranteed
// not to overlap with any other Run on the same Sequence.
func (s *Sequence) Run(fn func() error) error {
	done := make(chan error, 1)
	s.work <- func() { done <- fn() }
	return <-done
}

// Stop terminates the draining goroutine. Callers must not Run after
// Stop; a Run submitted concurrently with Stop may block forever.
func (s *Sequence) Stop() {
	close(s.stop)
}
