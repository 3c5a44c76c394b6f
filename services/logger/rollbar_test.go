package logsvc

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/rollbar/rollbar-go"

	"github.com/trezcool/alertify/core"
	"github.com/trezcool/alertify/core/user"
)

// captureTransport keeps reports in memory instead of posting them.
type captureTransport struct {
	rollbar.Transport
	mu     sync.Mutex
	bodies []map[string]interface{}
}

func (c *captureTransport) Send(body map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bodies = append(c.bodies, body)
	return nil
}

func (c *captureTransport) Wait()        {}
func (c *captureTransport) Close() error { return nil }

func (c *captureTransport) data() []map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := make([]map[string]interface{}, 0, len(c.bodies))
	for _, body := range c.bodies {
		res = append(res, body["data"].(map[string]interface{}))
	}
	return res
}

func newCapturingLogger(buf *bytes.Buffer) (*RollbarLogger, *captureTransport) {
	logger := NewRollbarLogger(log.New(buf, "TEST : ", 0), &core.Config{Env: "TEST"})
	tr := &captureTransport{Transport: rollbar.NewSyncTransport("", "")}
	logger.client.Transport = tr
	logger.Enable(true)
	return logger, tr
}

func TestRollbarLogger(t *testing.T) {
	buf := new(bytes.Buffer)
	logger, tr := newCapturingLogger(buf)

	usr := user.User{ID: 3, Username: "ada", Email: "ada@test.test"}
	logger.Warn("delivering to user 3: mailbox unavailable", errors.New("mailbox unavailable"), usr)
	logger.Info("run done", map[string]interface{}{"sent": 2})

	out := buf.String()
	for _, want := range []string{
		"TEST : delivering to user 3: mailbox unavailable",
		"Username:ada",
		"TEST : run done",
		"map[sent:2]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q in:\n%s", want, out)
		}
	}
	if strings.Count(out, "mailbox unavailable") != 1 {
		t.Errorf("error printed more than once:\n%s", out)
	}

	reports := tr.data()
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}

	warn := reports[0]
	if warn["level"] != rollbar.WARN {
		t.Errorf("level = %v, want %v", warn["level"], rollbar.WARN)
	}
	person, _ := warn["person"].(map[string]string)
	if person["id"] != "3" || person["username"] != "ada" || person["email"] != "ada@test.test" {
		t.Errorf("person = %v", person)
	}

	info := reports[1]
	if _, ok := info["person"]; ok {
		t.Errorf("report without a user has person %v", info["person"])
	}
	if custom, _ := info["custom"].(map[string]interface{}); custom["sent"] != 2 {
		t.Errorf("custom = %v", info["custom"])
	}
}

func TestRollbarLogger_concurrentRecipients(t *testing.T) {
	logger, tr := newCapturingLogger(new(bytes.Buffer))

	const n = 16
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			usr := user.User{ID: id, Username: fmt.Sprintf("user%d", id)}
			if id%2 == 0 {
				logger.Warn(fmt.Sprintf("delivering to user %d", id), errors.New("mailbox unavailable"), usr)
			} else {
				logger.Info(fmt.Sprintf("delivering to user %d", id), usr)
			}
		}(i)
	}
	wg.Wait()

	reports := tr.data()
	if len(reports) != n {
		t.Fatalf("got %d reports, want %d", len(reports), n)
	}
	for _, data := range reports {
		custom, _ := data["custom"].(map[string]interface{})
		msg, _ := custom["message"].(string)
		wantID := strings.TrimPrefix(msg, "delivering to user ")
		person, _ := data["person"].(map[string]string)
		if person["id"] != wantID || person["username"] != "user"+wantID {
			t.Errorf("report %q filed under person %v", msg, person)
		}
	}
}

func TestRollbarLogger_prepare(t *testing.T) {
	logger := &RollbarLogger{}
	err := errors.New("boom")
	r := logger.prepare("msg", []interface{}{
		err, errors.New("second"), user.User{ID: 1}, user.User{ID: 2}, map[string]interface{}{"alert": 7}, 42,
	})

	if r.err != err {
		t.Errorf("err = %v, want %v", r.err, err)
	}
	if p, ok := rollbar.PersonFromContext(r.ctx); !ok || p.Id != "1" {
		t.Errorf("person = %+v, want the first user", p)
	}
	if r.extras["message"] != "msg" || r.extras["alert"] != 7 {
		t.Errorf("extras = %v", r.extras)
	}
	if args, _ := r.extras["args"].([]interface{}); len(args) != 2 || args[0] != "second" || args[1] != "42" {
		t.Errorf("extras[args] = %v", r.extras["args"])
	}
}
