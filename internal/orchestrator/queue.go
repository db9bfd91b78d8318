package orchestrator

// insertQueued places t in the pending queue, preserving descending weight
// order. Tasks of equal weight keep arrival order: a new entry goes behind
// every existing entry of the same weight. Callers must hold o.mu.
func (o *Orchestrator) insertQueued(t *TaskInstance) {
	w := t.Definition.Priority.Weight()
	pos := len(o.queue)
	for i, q := range o.queue {
		if q.Definition.Priority.Weight() < w {
			pos = i
			break
		}
	}
	o.queue = append(o.queue, nil)
	copy(o.queue[pos+1:], o.queue[pos:])
	o.queue[pos] = t
}

// removeQueued drops the task with the given ID from the pending queue.
// Callers must hold o.mu.
func (o *Orchestrator) removeQueued(id string) bool {
	for i, q := range o.queue {
		if q.Definition.ID == id {
			o.queue = append(o.queue[:i], o.queue[i+1:]...)
			return true
		}
	}
	return false
}

// QueuedTasks returns the IDs of queued tasks in dispatch order.
func (o *Orchestrator) QueuedTasks() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, len(o.queue))
	for i, q := range o.queue {
		ids[i] = q.Definition.ID
	}
	return ids
}
