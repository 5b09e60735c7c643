package initiative

// immediateQueue orders immediately-executable actions by descending
// priority. Equal priorities execute in proposal order.
type immediateQueue []*Action

func (q immediateQueue) Len() int {
	return len(q)
}

func (q immediateQueue) Less(i, j int) bool {
	if q[i].Priority != q[j].Priority {
		return q[i].Priority > q[j].Priority
	}

	return q[i].seq < q[j].seq
}

func (q immediateQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
}

func (q *immediateQueue) Push(x interface{}) {
	*q = append(*q, x.(*Action))
}

func (q *immediateQueue) Pop() interface{} {
	old := *q
	n := len(old)
	a := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]

	return a
}

// deferredQueue orders deferred actions by ready time. Among actions
// ready at the same instant, higher priority wins, then proposal order.
type deferredQueue []*Action

func (q deferredQueue) Len() int {
	return len(q)
}

func (q deferredQueue) Less(i, j int) bool {
	if !q[i].ReadyAt.Equal(q[j].ReadyAt) {
		return q[i].ReadyAt.Before(q[j].ReadyAt)
	}

	if q[i].Priority != q[j].Priority {
		return q[i].Priority > q[j].Priority
	}

	return q[i].seq < q[j].seq
}

func (q deferredQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
}

func (q *deferredQueue) Push(x interface{}) {
	*q = append(*q, x.(*Action))
}

func (q *deferredQueue) Pop() interface{} {
	old := *q
	n := len(old)
	a := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]

	return a
}
