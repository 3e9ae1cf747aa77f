package cmd

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"go.bug.st/serial/enumerator"
)

// selectPort enumerates the serial ports and lets the user pick one.
func selectPort() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", errors.New("no serial ports found")
	}
	items := make([]string, 0, len(ports))
	for _, port := range ports {
		label := port.Name
		if port.IsUSB {
			label = fmt.Sprintf("%s (USB %s:%s)", port.Name, port.VID, port.PID)
		}
		items = append(items, label)
	}
	prompt := promptui.Select{
		Label: "Select com port",
		Items: items,
	}
	idx, _, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return ports[idx].Name, nil
}
