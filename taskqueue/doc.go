// Package taskqueue registers injected functions as queue tasks.
//
// Task wraps a function with the container's caching injector, so a task's
// dependencies are resolved on the first delivery and shared by every later
// one. Any queue that implements Registrar can carry the tasks; LocalQueue
// is an in-process worker pool.
//
//	q := taskqueue.NewLocalQueue(taskqueue.WithWorkers(4))
//	if err := taskqueue.Task(q, c, "invoice.send", sendInvoice); err != nil { ... }
//	q.Start(ctx)
//	id, err := q.Enqueue(ctx, "invoice.send", SendInvoice{InvoiceID: 7})
package taskqueue
