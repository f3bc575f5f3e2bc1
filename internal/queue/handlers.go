package queue

import "github.com/hibiken/asynq"

// NewMux maps task types to their handlers. Workers register here so the
// worker binary owns exactly one mux.
func NewMux(handlers map[string]asynq.Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	for taskType, h := range handlers {
		mux.Handle(taskType, h)
	}
	return mux
}
