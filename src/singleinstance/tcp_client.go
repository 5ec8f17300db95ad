package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

const (
	detectTimeout  = 300 * time.Millisecond
	triggerTimeout = 2 * time.Second
)

type tcpClient struct{}

func newTcpClient() Client { return &tcpClient{} }

// budget is the time left on ctx, or fallback when it has no deadline.
func budget(ctx context.Context, fallback time.Duration) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
	}
	return fallback
}

// findResident returns the address of the first port in range that answers PING.
func findResident(timeout time.Duration) (string, int, bool) {
	start, end := getPortRange()
	for port := start; port <= end; port++ {
		addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
		if ping(addr, timeout) {
			return addr, port, true
		}
	}
	return "", 0, false
}

// DetectResidentPort returns (port, true) if a resident in the port range answers PING.
func DetectResidentPort(ctx context.Context) (int, bool) {
	_, port, ok := findResident(budget(ctx, detectTimeout))
	return port, ok
}

func (c *tcpClient) Trigger(ctx context.Context, action string) (bool, string, error) {
	timeout := budget(ctx, triggerTimeout)
	addr, _, ok := findResident(timeout)
	if !ok {
		return false, "", nil
	}
	reply, err := send(addr, action, timeout)
	return true, reply, err
}

// exchange writes one request line and hands the reply reader to read.
func exchange(addr, request string, timeout time.Duration, read func(*bufio.Reader) error) error {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))
	if _, err := io.WriteString(conn, request); err != nil {
		return err
	}
	return read(bufio.NewReader(conn))
}

func ping(addr string, timeout time.Duration) bool {
	err := exchange(addr, pingRequest, timeout, func(br *bufio.Reader) error {
		resp, err := br.ReadString('\n')
		if err != nil {
			return err
		}
		if resp != pongResponse {
			return fmt.Errorf("unexpected ping reply %q", resp)
		}
		return nil
	})
	return err == nil
}

func send(addr, action string, timeout time.Duration) (string, error) {
	var reply string
	err := exchange(addr, actionPrefix+action+"\n", timeout, func(br *bufio.Reader) error {
		status, err := br.ReadString('\n')
		if err != nil {
			return err
		}
		body, _ := io.ReadAll(br)
		switch status {
		case statusOK:
			reply = string(body)
			return nil
		case statusError:
			return errors.New(string(body))
		}
		return fmt.Errorf("unexpected resident status %q", status)
	})
	return reply, err
}
