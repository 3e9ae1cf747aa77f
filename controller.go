package canbutton

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// Controller is the bus controller boundary. Subscribe installs an
// acceptance filter and returns the bounded inbound queue bound to it.
// Submit is non-blocking: it either accepts the frame for transmission and
// later fires onComplete exactly once, or fails immediately without
// consuming a transmit slot.
type Controller interface {
	Name() string
	Open(context.Context) error
	Subscribe(Filter, int) (<-chan CANFrame, error)
	Submit(*CANFrame, func(error)) error
	Err() <-chan error
	Event() <-chan Event
	Close() error
}

type ControllerInfo struct {
	Name               string
	Description        string
	RequiresSerialPort bool
	New                func(*Config) (Controller, error)
}

func (c *ControllerInfo) String() string {
	return fmt.Sprintf("%s | %s, requires serial port: %v", c.Name, c.Description, c.RequiresSerialPort)
}

// Config carries the controller settings fixed at startup.
type Config struct {
	Port         string
	PortBaudrate int
	CANRate      float64
	TxQueueDepth int
	Debug        bool
	OnMessage    func(string)
}

const DefaultTxQueueDepth = 4

var controllerMap = make(map[string]*ControllerInfo)

func NewController(controllerName string, cfg *Config) (Controller, error) {
	if cfg.TxQueueDepth <= 0 {
		cfg.TxQueueDepth = DefaultTxQueueDepth
	}
	if cfg.OnMessage == nil {
		cfg.OnMessage = func(msg string) {
			_, file, no, ok := runtime.Caller(1)
			if ok {
				fmt.Printf("%s#%d %v\n", filepath.Base(file), no, msg)
			} else {
				log.Println(msg)
			}
		}
	}
	if controller, found := controllerMap[strings.ToLower(controllerName)]; found {
		return controller.New(cfg)
	}
	return nil, fmt.Errorf("unknown controller %q", controllerName)
}

func RegisterController(controller *ControllerInfo) error {
	key := strings.ToLower(controller.Name)
	if _, found := controllerMap[key]; !found {
		controllerMap[key] = controller
		return nil
	}
	return fmt.Errorf("controller %s already registered", controller.Name)
}

func ListControllerNames() []string {
	var out []string
	for _, controller := range controllerMap {
		out = append(out, controller.Name)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}

func ListControllers() []ControllerInfo {
	var out []ControllerInfo
	for _, controller := range controllerMap {
		out = append(out, *controller)
	}
	return out
}
