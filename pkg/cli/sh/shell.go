// Package sh provides an interactive shell driving a network station
// channel by hand.
package sh

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/dccex.go/pkg/dccex"
	"github.com/robotalks/dccex.go/pkg/network"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	// ReplyTimeout bounds waiting for replies in evaluation mode.
	ReplyTimeout time.Duration

	Shell   *ishell.Shell
	Channel *dccex.Channel
	Hub     *network.Hub

	clientID int32

	lock    sync.Mutex
	replies []string
	pending int
}

const (
	shellKey  = "$shell"
	flushPoll = 5 * time.Millisecond
)

var (
	evalOnly     bool
	replyTimeout = 2 * time.Second

	commands = []*ishell.Cmd{
		&SendCmd,
		&TagCmd,
		&DepthCmd,
		&StatsCmd,
		&TickCmd,
		&RepliesCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.DurationVar(&replyTimeout, "reply-timeout", replyTimeout, "Time to wait for replies in evaluation mode.")
}

// AddCmds adds more commands, must be called before New.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a shell registered as a client of hub.
func New(ch *dccex.Channel, hub *network.Hub) *Shell {
	s := &Shell{
		Interactive:  !evalOnly,
		ReplyTimeout: replyTimeout,
		Shell:        ishell.New(),
		Channel:      ch,
		Hub:          hub,
	}
	s.clientID = hub.Register(s)
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", ch.Role().Name()))
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Name implements network.Client.
func (s *Shell) Name() string {
	return "shell"
}

// Send implements network.Client. Replies are printed right away in
// interactive mode and collected otherwise.
func (s *Shell) Send(payload string) error {
	if s.Interactive && s.Shell != nil {
		s.Shell.Println("<<", payload)
		return nil
	}
	s.lock.Lock()
	s.replies = append(s.replies, payload)
	s.lock.Unlock()
	return nil
}

// TakeReplies returns and clears collected replies.
func (s *Shell) TakeReplies() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	replies := s.replies
	s.replies = nil
	if s.pending -= len(replies); s.pending < 0 {
		s.pending = 0
	}
	return replies
}

// Submit queues a command from the shell client.
func (s *Shell) Submit(args ...string) error {
	payload := strings.TrimSpace(strings.Join(args, " "))
	if err := s.Hub.Submit(s.clientID, payload); err != nil {
		return err
	}
	s.lock.Lock()
	s.pending++
	s.lock.Unlock()
	return nil
}

// Flush waits until the outbound queue is empty and every submitted
// command got a reply, or timeout passes. Collected replies are
// returned in both cases.
func (s *Shell) Flush(timeout time.Duration) ([]string, error) {
	deadline := time.Now().Add(timeout)
	for {
		depth, err := s.Channel.QueueDepth(dccex.Outbound)
		if err != nil {
			return s.TakeReplies(), err
		}
		s.lock.Lock()
		missing := s.pending - len(s.replies)
		s.lock.Unlock()
		if depth == 0 && missing <= 0 {
			return s.TakeReplies(), nil
		}
		if time.Now().After(deadline) {
			return s.TakeReplies(), fmt.Errorf("timeout: %d queued, %d replies missing", depth, missing)
		}
		time.Sleep(flushPoll)
	}
}

// DecodeTag decodes a protocol tag given in decimal. Out of range
// tags decode as UNKNOWN.
func DecodeTag(arg string) (string, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return "", fmt.Errorf("invalid tag %q: %w", arg, err)
	}
	return dccex.DecodeProtocolTag(dccex.ProtocolTag(n)), nil
}

// Depths formats depth of both queues.
func (s *Shell) Depths() (string, error) {
	in, err := s.Channel.QueueDepth(dccex.Inbound)
	if err != nil {
		return "", err
	}
	out, err := s.Channel.QueueDepth(dccex.Outbound)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("inbound %d/%d outbound %d/%d", in, s.Channel.Capacity(), out, s.Channel.Capacity()), nil
}

// FormatStats formats channel counters.
func FormatStats(st dccex.Stats) string {
	return fmt.Sprintf("enqueued %d sent %d received %d processed %d dropped %d decode-errors %d send-errors %d",
		st.Enqueued, st.Sent, st.Received, st.Processed, st.Dropped, st.DecodeErrors, st.SendErrors)
}

// Tick runs count service ticks and stops at the first failure.
func (s *Shell) Tick(count int) error {
	for i := 0; i < count; i++ {
		if err := s.Channel.ServiceTick(); err != nil {
			return fmt.Errorf("tick %d: %w", i+1, err)
		}
	}
	return nil
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.Hub.Unregister(s.clientID)
	if len(args) > 0 {
		// replies are collected and printed once flushed
		s.Interactive = false
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		replies, err := s.Flush(s.ReplyTimeout)
		for _, reply := range replies {
			s.Shell.Println(reply)
		}
		if err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

func argCount(c *ishell.Context, def int) (int, error) {
	if len(c.Args) == 0 {
		return def, nil
	}
	n, err := strconv.Atoi(c.Args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid count %q", c.Args[0])
	}
	return n, nil
}

var (
	// SendCmd queues a command to the command station.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "PAYLOAD",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(errors.New("payload expected"))
				return
			}
			if err := ShellFrom(c).Submit(c.Args...); err != nil {
				c.Err(err)
				return
			}
			c.Println("queued")
		},
	}

	// TagCmd prints the name of a protocol tag.
	TagCmd = ishell.Cmd{
		Name: "tag",
		Help: "N",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(errors.New("tag number expected"))
				return
			}
			name, err := DecodeTag(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(name)
		},
	}

	// DepthCmd prints queue depths.
	DepthCmd = ishell.Cmd{
		Name: "depth",
		Help: "",
		Func: func(c *ishell.Context) {
			out, err := ShellFrom(c).Depths()
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(out)
		},
	}

	// StatsCmd prints channel counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "",
		Func: func(c *ishell.Context) {
			c.Println(FormatStats(ShellFrom(c).Channel.Stats()))
		},
	}

	// TickCmd runs service ticks by hand.
	TickCmd = ishell.Cmd{
		Name:    "tick",
		Aliases: []string{"t"},
		Help:    "[COUNT]",
		Func: func(c *ishell.Context) {
			n, err := argCount(c, 1)
			if err == nil {
				err = ShellFrom(c).Tick(n)
			}
			if err != nil {
				c.Err(err)
			}
		},
	}

	// RepliesCmd prints collected replies in evaluation mode.
	RepliesCmd = ishell.Cmd{
		Name: "replies",
		Help: "",
		Func: func(c *ishell.Context) {
			for _, reply := range ShellFrom(c).TakeReplies() {
				c.Println(reply)
			}
		},
	}
)
