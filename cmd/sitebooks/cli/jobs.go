package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sitebooks/sitebooks/internal/siteprofit"
	"github.com/sitebooks/sitebooks/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) *JobsCLI {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	return &JobsCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// TriggerSnapshot enqueues a site profit snapshot. Zero bounds capture month-to-date.
func (c *JobsCLI) TriggerSnapshot(ctx context.Context, from, to time.Time) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	task, err := jobs.NewSiteProfitSnapshotTask(from, to)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3))
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue() (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
	}
	return stats, nil
}

// ListScheduled returns scheduled task infos for observability.
func (c *JobsCLI) ListScheduled(size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}

// JobsCommand implements `sitebooks jobs <trigger|inspect|scheduled>`.
type JobsCommand struct {
	RedisAddr string
	Stdout    io.Writer
	Stderr    io.Writer
}

const jobsUsage = `usage: sitebooks jobs <command>

commands:
  trigger [-from YYYY-MM-DD -to YYYY-MM-DD]   enqueue a site profit snapshot
  inspect                                    show default queue counters
  scheduled [-size N]                        list scheduled tasks`

// Run executes the subcommand and returns the process exit code.
func (c JobsCommand) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(c.Stderr, jobsUsage)
		return 2
	}
	switch args[0] {
	case "trigger":
		return c.trigger(ctx, args[1:])
	case "inspect":
		return c.inspect()
	case "scheduled":
		return c.scheduled(args[1:])
	default:
		fmt.Fprintf(c.Stderr, "unknown jobs command %q\n%s\n", args[0], jobsUsage)
		return 2
	}
}

func (c JobsCommand) trigger(ctx context.Context, args []string) int {
	flags := flag.NewFlagSet("jobs trigger", flag.ContinueOnError)
	flags.SetOutput(c.Stderr)
	from := flags.String("from", "", "first day of the window (YYYY-MM-DD)")
	to := flags.String("to", "", "last day of the window (YYYY-MM-DD)")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	window, err := siteprofit.ParseFilter("", *from, *to)
	if err != nil {
		fmt.Fprintln(c.Stderr, err)
		return 2
	}
	if window.HasFrom() != window.HasTo() {
		fmt.Fprintln(c.Stderr, "from and to must be supplied together")
		return 2
	}

	helper := NewJobsCLI(c.RedisAddr)
	defer helper.Close()
	info, err := helper.TriggerSnapshot(ctx, window.From, window.To)
	if err != nil {
		fmt.Fprintf(c.Stderr, "enqueue snapshot: %v\n", err)
		return 1
	}
	fmt.Fprintf(c.Stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	return 0
}

func (c JobsCommand) inspect() int {
	helper := NewJobsCLI(c.RedisAddr)
	defer helper.Close()
	stats, err := helper.InspectQueue()
	if err != nil {
		fmt.Fprintf(c.Stderr, "inspect queue: %v\n", err)
		return 1
	}
	fmt.Fprintf(c.Stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	return 0
}

func (c JobsCommand) scheduled(args []string) int {
	flags := flag.NewFlagSet("jobs scheduled", flag.ContinueOnError)
	flags.SetOutput(c.Stderr)
	size := flags.Int("size", 10, "page size")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	helper := NewJobsCLI(c.RedisAddr)
	defer helper.Close()
	tasks, err := helper.ListScheduled(*size)
	if err != nil {
		fmt.Fprintf(c.Stderr, "list scheduled: %v\n", err)
		return 1
	}
	for _, task := range tasks {
		fmt.Fprintf(c.Stdout, "%s %s next=%s\n", task.ID, task.Type, task.NextProcessAt.Format(time.RFC3339))
	}
	return 0
}
