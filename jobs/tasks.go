package jobs

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSendEmail delivers a single email over SMTP.
	TaskSendEmail = "mail:send"
	// TaskDueReminder mails digests of open invoices due today.
	TaskDueReminder = "invoice:due_reminder"
	// TaskIncomeWarmup fills the income report cache.
	TaskIncomeWarmup = "income:warmup"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// DueReminderPayload optionally pins the day to remind about (YYYY-MM-DD).
type DueReminderPayload struct {
	Day string `json:"day,omitempty"`
}

// IncomeWarmupPayload sets how many trailing months to warm.
type IncomeWarmupPayload struct {
	Months int `json:"months,omitempty"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	return newTask(TaskSendEmail, payload)
}

// NewDueReminderTask constructs a reminder task.
func NewDueReminderTask(payload DueReminderPayload) (*asynq.Task, error) {
	return newTask(TaskDueReminder, payload)
}

// NewIncomeWarmupTask constructs a warmup task.
func NewIncomeWarmupTask(payload IncomeWarmupPayload) (*asynq.Task, error) {
	return newTask(TaskIncomeWarmup, payload)
}

// ScheduledTasks returns the task types that may be enqueued without a
// payload, mapped to their default task.
func ScheduledTasks() map[string]func() (*asynq.Task, error) {
	return map[string]func() (*asynq.Task, error){
		TaskDueReminder:  func() (*asynq.Task, error) { return NewDueReminderTask(DueReminderPayload{}) },
		TaskIncomeWarmup: func() (*asynq.Task, error) { return NewIncomeWarmupTask(IncomeWarmupPayload{}) },
	}
}

// TaskByName builds the default task for one of ScheduledTasks.
func TaskByName(name string) (*asynq.Task, error) {
	build, ok := ScheduledTasks()[name]
	if !ok {
		names := make([]string, 0)
		for known := range ScheduledTasks() {
			names = append(names, known)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("jobs: unknown task %q (known: %v)", name, names)
	}
	return build()
}

func newTask(typename string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typename, data), nil
}
