// Command smoke seeds a running API instance with sample master data,
// generates a timetable and verifies the result end to end: no hard
// conflicts, consistent analytics, working CSV and async export paths.
// It exits non-zero on the first violation so CI can gate on it.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type client struct {
	base   string
	prefix string
	token  string
	http   *http.Client
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type entry struct {
	TeacherName string `json:"teacher_name"`
	RoomName    string `json:"room_name"`
	ClassGroup  string `json:"class_group"`
	Day         string `json:"day"`
	Period      int    `json:"period"`
	TimeSlotID  string `json:"time_slot_id"`
}

func main() {
	var (
		base     string
		prefix   string
		username string
		password string
		timeout  time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&prefix, "prefix", "/api/v1", "API route prefix")
	flag.StringVar(&username, "username", "", "Admin username (leave empty when auth is disabled)")
	flag.StringVar(&password, "password", "", "Admin password")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	c := &client{
		base:   strings.TrimRight(base, "/"),
		prefix: prefix,
		http:   &http.Client{Timeout: timeout},
	}

	failures := 0
	step := func(name string, fn func() error) {
		if err := fn(); err != nil {
			failures++
			fmt.Printf("[FAIL] %s: %v\n", name, err)
			return
		}
		fmt.Printf("[OK]   %s\n", name)
	}

	if username != "" {
		step("login", func() error { return c.login(username, password) })
	}

	step("seed default time slots", c.seedSlots)
	step("seed teachers, subjects and rooms", c.seedMasterData)

	var placed int
	step("generate timetable", func() error {
		var err error
		placed, err = c.generate()
		return err
	})

	var entries []entry
	step("fetch timetable", func() error {
		var err error
		entries, err = c.fetchTimetable()
		if err == nil && len(entries) != placed {
			return fmt.Errorf("expected %d entries, got %d", placed, len(entries))
		}
		return err
	})

	step("no hard conflicts", func() error { return checkConflicts(entries) })

	step("analytics consistent", func() error { return c.checkAnalytics(placed) })

	step("csv export", c.checkCSV)

	step("async export job", c.checkAsyncExport)

	if failures > 0 {
		fmt.Printf("%d step(s) failed\n", failures)
		os.Exit(1)
	}
	fmt.Println("smoke run passed")
}

func (c *client) login(username, password string) error {
	payload := map[string]string{"username": username, "password": password}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.call(http.MethodPost, "/auth/login", payload, http.StatusOK, &out); err != nil {
		return err
	}
	if out.AccessToken == "" {
		return fmt.Errorf("no access token returned")
	}
	c.token = out.AccessToken
	return nil
}

func (c *client) seedSlots() error {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.call(http.MethodPost, "/timeslots/generate-default", nil, http.StatusCreated, &out); err != nil {
		return err
	}
	if out.Count != 30 {
		return fmt.Errorf("expected 30 default slots, got %d", out.Count)
	}
	return nil
}

func (c *client) seedMasterData() error {
	teachers := []map[string]interface{}{
		{"name": "Ms. Carter", "email": "carter@school.test", "department": "Science"},
		{"name": "Mr. Okafor", "email": "okafor@school.test", "department": "Humanities"},
	}
	teacherIDs := make([]string, 0, len(teachers))
	for _, t := range teachers {
		var out struct {
			ID string `json:"id"`
		}
		if err := c.call(http.MethodPost, "/teachers", t, http.StatusCreated, &out); err != nil {
			return fmt.Errorf("create teacher: %w", err)
		}
		teacherIDs = append(teacherIDs, out.ID)
	}

	subjects := []map[string]interface{}{
		{"name": "Mathematics", "code": "MATH", "teacher_id": teacherIDs[0], "class_group": "Class A", "sessions_per_week": 4},
		{"name": "History", "code": "HIST", "teacher_id": teacherIDs[1], "class_group": "Class A", "sessions_per_week": 3},
		{"name": "Physics", "code": "PHY", "teacher_id": teacherIDs[0], "class_group": "Class B", "sessions_per_week": 3},
		{"name": "Geography", "code": "GEO", "teacher_id": teacherIDs[1], "class_group": "Class B", "sessions_per_week": 2},
	}
	for _, s := range subjects {
		if err := c.call(http.MethodPost, "/subjects", s, http.StatusCreated, nil); err != nil {
			return fmt.Errorf("create subject: %w", err)
		}
	}

	rooms := []map[string]interface{}{
		{"name": "Room 101", "capacity": 40},
		{"name": "Science Lab", "room_type": "lab", "capacity": 24},
	}
	for _, r := range rooms {
		if err := c.call(http.MethodPost, "/rooms", r, http.StatusCreated, nil); err != nil {
			return fmt.Errorf("create room: %w", err)
		}
	}
	return nil
}

func (c *client) generate() (int, error) {
	var out struct {
		Message   string `json:"message"`
		Requested int    `json:"requested"`
		Placed    int    `json:"placed"`
		Dropped   int    `json:"dropped"`
	}
	if err := c.call(http.MethodPost, "/timetable/generate", nil, http.StatusOK, &out); err != nil {
		return 0, err
	}
	if out.Placed+out.Dropped != out.Requested {
		return 0, fmt.Errorf("placed %d + dropped %d != requested %d", out.Placed, out.Dropped, out.Requested)
	}
	fmt.Printf("       requested=%d placed=%d dropped=%d\n", out.Requested, out.Placed, out.Dropped)
	return out.Placed, nil
}

func (c *client) fetchTimetable() ([]entry, error) {
	var out []entry
	if err := c.call(http.MethodGet, "/timetable", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// checkConflicts re-validates the hard constraints from the outside: one
// teacher, one class group and one room per slot.
func checkConflicts(entries []entry) error {
	teacherBusy := map[string]bool{}
	classBusy := map[string]bool{}
	roomBusy := map[string]bool{}
	for _, e := range entries {
		tk := e.TimeSlotID + "|" + e.TeacherName
		ck := e.TimeSlotID + "|" + e.ClassGroup
		rk := e.TimeSlotID + "|" + e.RoomName
		if teacherBusy[tk] {
			return fmt.Errorf("teacher %s double-booked on %s period %d", e.TeacherName, e.Day, e.Period)
		}
		if classBusy[ck] {
			return fmt.Errorf("class %s double-booked on %s period %d", e.ClassGroup, e.Day, e.Period)
		}
		if roomBusy[rk] {
			return fmt.Errorf("room %s double-booked on %s period %d", e.RoomName, e.Day, e.Period)
		}
		teacherBusy[tk] = true
		classBusy[ck] = true
		roomBusy[rk] = true
	}
	return nil
}

func (c *client) checkAnalytics(placed int) error {
	var out struct {
		TotalClasses    int `json:"total_classes"`
		TeacherWorkload []struct {
			Sessions int `json:"sessions"`
		} `json:"teacher_workload"`
		FreeSlots int `json:"free_slots"`
	}
	if err := c.call(http.MethodGet, "/analytics", nil, http.StatusOK, &out); err != nil {
		return err
	}
	if out.TotalClasses != placed {
		return fmt.Errorf("analytics counts %d entries, expected %d", out.TotalClasses, placed)
	}
	sum := 0
	for _, w := range out.TeacherWorkload {
		sum += w.Sessions
	}
	if sum != placed {
		return fmt.Errorf("teacher workload sums to %d, expected %d", sum, placed)
	}
	return nil
}

func (c *client) checkCSV() error {
	req, err := http.NewRequest(http.MethodGet, c.base+c.prefix+"/timetable/export/csv", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) < 2 {
		return fmt.Errorf("csv has no data rows")
	}
	if !strings.HasPrefix(lines[0], "Day,Period,Start,End") {
		return fmt.Errorf("unexpected csv header %q", lines[0])
	}
	return nil
}

func (c *client) checkAsyncExport() error {
	var job struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := c.call(http.MethodPost, "/exports", map[string]string{"format": "csv"}, http.StatusAccepted, &job); err != nil {
		return err
	}

	deadline := time.Now().Add(30 * time.Second)
	var state struct {
		Status      string `json:"status"`
		Error       string `json:"error"`
		DownloadURL string `json:"download_url"`
	}
	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("job %s still %s after 30s", job.ID, state.Status)
		}
		if err := c.call(http.MethodGet, "/exports/"+job.ID, nil, http.StatusOK, &state); err != nil {
			return err
		}
		if state.Status == "COMPLETED" {
			break
		}
		if state.Status == "FAILED" {
			return fmt.Errorf("job failed: %s", state.Error)
		}
		time.Sleep(500 * time.Millisecond)
	}

	if state.DownloadURL == "" {
		return fmt.Errorf("completed job has no download url")
	}
	resp, err := c.http.Get(c.base + state.DownloadURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned %d", resp.StatusCode)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		return fmt.Errorf("downloaded file is empty")
	}
	return nil
}

func (c *client) call(method, path string, payload interface{}, wantStatus int, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.base+c.prefix+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != wantStatus {
		msg := ""
		if env.Error != nil {
			msg = env.Error.Message
		}
		return fmt.Errorf("%s %s returned %d (%s)", method, path, resp.StatusCode, msg)
	}
	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}
