package fiber

// anyThread is the task-pin sentinel meaning "any worker may run this".
const anyThread int64 = -1

// task is a discriminated record of either a fiber reference or a plain
// callback, plus an optional thread pin. Exactly one of fiber/cb is set.
type task struct {
	fiber *Fiber
	cb    func()
	pin   int64
}

func fiberTask(f *Fiber, pin int64) task {
	return task{fiber: f, pin: pin}
}

func callbackTask(cb func(), pin int64) task {
	return task{cb: cb, pin: pin}
}

func (t task) matchesThread(id uint64) bool {
	return t.pin == anyThread || t.pin == int64(id)
}
