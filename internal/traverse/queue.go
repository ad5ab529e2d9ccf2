package traverse

import "sync"

// workQueue is a LIFO job stack shared by all workers. It closes itself once
// every pushed job has been marked done, or immediately on abort.
type workQueue struct {
	mutex     sync.Mutex
	available *sync.Cond
	jobs      []directoryJob
	pending   int
	closed    bool
}

func newWorkQueue() *workQueue {
	queue := &workQueue{}
	queue.available = sync.NewCond(&queue.mutex)
	return queue
}

func (queue *workQueue) push(job directoryJob) {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()
	if queue.closed {
		return
	}
	queue.jobs = append(queue.jobs, job)
	queue.pending++
	queue.available.Signal()
}

func (queue *workQueue) pop() (directoryJob, bool) {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()
	for len(queue.jobs) == 0 && !queue.closed {
		queue.available.Wait()
	}
	if queue.closed {
		return directoryJob{}, false
	}
	lastIndex := len(queue.jobs) - 1
	job := queue.jobs[lastIndex]
	queue.jobs = queue.jobs[:lastIndex]
	return job, true
}

func (queue *workQueue) done() {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()
	queue.pending--
	if queue.pending <= 0 {
		queue.closed = true
		queue.available.Broadcast()
	}
}

func (queue *workQueue) abort() {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()
	queue.closed = true
	queue.jobs = nil
	queue.available.Broadcast()
}
