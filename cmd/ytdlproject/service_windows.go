//go:build windows

package main

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

const serviceName = "ytdlproject"
const serviceDisplayName = "ytdlproject download orchestrator"

// platformRun dispatches into the Windows Service Control Manager when
// --service is set; otherwise it runs exactly like the POSIX
// foreground case.
func platformRun(service bool) error {
	if !service {
		return runServerLoop(nil)
	}
	return svc.Run(serviceName, &winService{})
}

type winService struct{}

// Execute implements svc.Handler: it reports Running to the SCM
// immediately (service startup must be fast; logging/DB init happens
// afterward inside runServerLoop, same ordering note as the original's
// "initializing logging takes too much time" comment), then forwards a
// Stop/Shutdown control as a close on the stop channel passed to
// runServerLoop.
func (winService) Execute(args []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (bool, uint32) {
	changes <- svc.Status{State: svc.StartPending}

	stopCh := make(chan struct{})
	doneCh := make(chan error, 1)
	go func() { doneCh <- runServerLoop(stopCh) }()

	changes <- svc.Status{State: svc.Running, Accepts: svc.AcceptStop | svc.AcceptShutdown}

	for {
		select {
		case req := <-r:
			switch req.Cmd {
			case svc.Interrogate:
				changes <- req.CurrentStatus
			case svc.Stop, svc.Shutdown:
				changes <- svc.Status{State: svc.StopPending}
				close(stopCh)
				<-doneCh
				changes <- svc.Status{State: svc.Stopped}
				return false, 0
			}
		case <-doneCh:
			changes <- svc.Status{State: svc.Stopped}
			return false, 0
		}
	}
}

// platformInstallService registers ytdlproject with the Windows
// Service Control Manager via golang.org/x/sys/windows/svc/mgr.
func platformInstallService(verbose bool) error {
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}
	scheme := "--log-none"
	if verbose {
		scheme = "--log-file"
	}

	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("connecting to service manager: %w", err)
	}
	defer m.Disconnect()

	if s, err := m.OpenService(serviceName); err == nil {
		s.Close()
		return fmt.Errorf("service %q already exists", serviceName)
	}

	s, err := m.CreateService(serviceName, exePath, mgr.Config{
		DisplayName: serviceDisplayName,
		Description: "Downloads videos from submitted URLs.",
		StartType:   mgr.StartAutomatic,
	}, "run", "--service", scheme)
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}
	defer s.Close()

	fmt.Printf("Successfully installed service %q.\n", serviceName)
	return nil
}

// platformUninstallService stops (if running) and deletes the service.
func platformUninstallService() error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("connecting to service manager: %w", err)
	}
	defer m.Disconnect()

	s, err := m.OpenService(serviceName)
	if err != nil {
		return fmt.Errorf("opening service %q: %w", serviceName, err)
	}
	defer s.Close()

	if status, err := s.Query(); err == nil && status.State != svc.Stopped {
		if _, err := s.Control(svc.Stop); err == nil {
			for i := 0; i < 20; i++ {
				status, err := s.Query()
				if err != nil || status.State == svc.Stopped {
					break
				}
				time.Sleep(250 * time.Millisecond)
			}
		}
	}

	if err := s.Delete(); err != nil {
		return fmt.Errorf("deleting service: %w", err)
	}
	fmt.Printf("Successfully uninstalled service %q.\n", serviceName)
	return nil
}
