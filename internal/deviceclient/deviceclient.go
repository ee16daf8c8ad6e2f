// Package deviceclient is the thin transport layer between a Device Worker
// (internal/device) and the physical lab hardware: HTTP calls to the
// washer/dispenser's Biotek LHC bridge and the incubator's REST shim, and a
// raw TCP connection to the robot arm's controller.
//
// Grounded on original_source/robots.py's curl() helper and ENV dataclass
// (host/port/url fields read from the environment, LHC_RunProtocol and
// input_plate/output_plate URL shapes) and on pkg/mcp/transport.go's
// buildHTTPClient (timeout + TLS-aware http.Client construction, the same
// shape reused here for the two Biotek endpoints and the incubator).
package deviceclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Env mirrors robots.py's frozen Env dataclass: the addresses of the three
// physical devices, read from the environment with the same fallbacks.
type Env struct {
	RobotarmHost string
	RobotarmPort int
	IncuURL      string
	BiotekURL    string
}

// EnvFromOS reads Env from the process environment, defaulting exactly the
// way ENV = Env(...) does in robots.py.
func EnvFromOS() Env {
	port, err := strconv.Atoi(os.Getenv("ROBOT_PORT"))
	if err != nil {
		port = 30001
	}
	host := os.Getenv("ROBOT_IP")
	if host == "" {
		host = "localhost"
	}
	incuURL := os.Getenv("INCU_URL")
	if incuURL == "" {
		incuURL = "?"
	}
	biotekURL := os.Getenv("BIOTEK_URL")
	if biotekURL == "" {
		biotekURL = "?"
	}
	return Env{RobotarmHost: host, RobotarmPort: port, IncuURL: incuURL, BiotekURL: biotekURL}
}

// httpClient is shared by the Biotek and incubator clients; ten minutes
// mirrors curl()'s ten_minutes timeout — these LHC runs are genuinely slow.
var httpClient = &http.Client{Timeout: 10 * time.Minute}

func getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("deviceclient: build request for %s: %w", url, err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deviceclient: request %s: %w", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("deviceclient: decode response from %s: %w", url, err)
	}
	return nil
}

// BiotekResult is the LHC bridge's response envelope, `{"err": ..., "out":
// {"status": ..., "details": ..., "value": ...}}` in robots.py.
type BiotekResult struct {
	Err string `json:"err"`
	Out struct {
		Status  string `json:"status"`
		Details string `json:"details"`
		Value   string `json:"value"`
	} `json:"out"`
}

// BiotekClient calls one washer or dispenser's LHC bridge over HTTP.
type BiotekClient struct {
	baseURL string
	name    string
}

// NewBiotekClient builds a client for the named device ("wash" or "disp").
func NewBiotekClient(env Env, name string) *BiotekClient {
	return &BiotekClient{baseURL: env.BiotekURL, name: name}
}

// RunProtocol triggers one LHC_RunProtocol call and returns the parsed
// result. Retry-on-transient-error (the "Error code: 6061" busy-port
// condition) is the Device Worker's job (internal/device), not this
// client's — this call is a single round trip.
func (c *BiotekClient) RunProtocol(ctx context.Context, path string) (BiotekResult, error) {
	url := c.baseURL + "/" + c.name + "/LHC_RunProtocol/" + path
	var res BiotekResult
	if err := getJSON(ctx, url, &res); err != nil {
		return BiotekResult{}, err
	}
	return res, nil
}

// IncuClient drives the incubator's REST shim.
type IncuClient struct {
	baseURL string
}

// NewIncuClient builds an incubator client.
func NewIncuClient(env Env) *IncuClient {
	return &IncuClient{baseURL: env.IncuURL}
}

type incuResult struct {
	Status string `json:"status"`
	Value  any    `json:"value"`
}

// Put moves a plate into the named incubator slot.
func (c *IncuClient) Put(ctx context.Context, loc string) error {
	return c.action(ctx, "input_plate", loc)
}

// Get moves a plate out of the named incubator slot.
func (c *IncuClient) Get(ctx context.Context, loc string) error {
	return c.action(ctx, "output_plate", loc)
}

func (c *IncuClient) action(ctx context.Context, actionPath, loc string) error {
	var res incuResult
	if err := getJSON(ctx, c.baseURL+"/"+actionPath+"/"+loc, &res); err != nil {
		return err
	}
	if res.Status != "OK" {
		return fmt.Errorf("deviceclient: incubator %s %s: status %q", actionPath, loc, res.Status)
	}
	return nil
}

// IsReady reports whether the incubator accepts a new command right now.
func (c *IncuClient) IsReady(ctx context.Context) (bool, error) {
	var res incuResult
	if err := getJSON(ctx, c.baseURL+"/is_ready", &res); err != nil {
		return false, err
	}
	if res.Status != "OK" {
		return false, fmt.Errorf("deviceclient: incubator is_ready: status %q", res.Status)
	}
	ready, _ := res.Value.(bool)
	return ready, nil
}

// GetClimate reads the incubator's current temperature/CO2 reading.
func (c *IncuClient) GetClimate(ctx context.Context) (map[string]any, error) {
	var res struct {
		Status string         `json:"status"`
		Value  map[string]any `json:"value"`
	}
	if err := getJSON(ctx, c.baseURL+"/get_climate", &res); err != nil {
		return nil, err
	}
	if res.Status != "OK" {
		return nil, fmt.Errorf("deviceclient: incubator get_climate: status %q", res.Status)
	}
	return res.Value, nil
}

// RobotarmClient holds a raw TCP connection to the robot controller. The
// actual URScript move-list dialect lives outside this pack's retrieved
// corpus (no robotarm.py was available to ground it on), so this client
// drives the controller's text protocol straight off spec.md §6: write the
// program, then stream frames until the completion substring or a
// recognized failure pattern, mirroring the socket usage
// robots.py's Env(robotarm_host, robotarm_port) implies.
type RobotarmClient struct {
	addr string
}

// NewRobotarmClient builds a client for the robot controller at host:port.
func NewRobotarmClient(env Env) *RobotarmClient {
	return &RobotarmClient{addr: net.JoinHostPort(env.RobotarmHost, strconv.Itoa(env.RobotarmPort))}
}

// robotarmFailurePatterns are the controller frames spec.md §6 calls out as
// recognized failures: a compile-time syntax/name error, a runtime secondary
// program exception, or a program that started and stopped without ever
// reaching its completion frame.
var robotarmFailurePatterns = []*regexp.Regexp{
	regexp.MustCompile(`syntax_error_on_line:`),
	regexp.MustCompile(`compile_error_name_not_found:`),
	regexp.MustCompile(`SECONDARY_PROGRAM_EXCEPTION`),
	regexp.MustCompile(`PROGRAM_\S*_(STARTED|STOPPED)`),
}

// RunProgram dials the controller, sends the named move-list program, and
// streams response frames until either the completion substring for this
// program or a recognized failure frame arrives. A failure frame is a fatal
// error (§4.8: arm execution errors are fatal and must propagate), not a
// silently-ignored acknowledgement.
func (c *RobotarmClient) RunProgram(ctx context.Context, program string) error {
	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("deviceclient: dial robot arm at %s: %w", c.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if _, err := conn.Write([]byte(program + "\n")); err != nil {
		return fmt.Errorf("deviceclient: send program %q: %w", program, err)
	}

	completion := fmt.Sprintf("Program %s completed", program)
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		frame := scanner.Text()
		if strings.Contains(frame, completion) {
			return nil
		}
		for _, pattern := range robotarmFailurePatterns {
			if pattern.MatchString(frame) {
				return fmt.Errorf("deviceclient: robot arm program %q failed: %s", program, frame)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("deviceclient: read frames for %q: %w", program, err)
	}
	return fmt.Errorf("deviceclient: robot arm connection closed before %q completed", program)
}
