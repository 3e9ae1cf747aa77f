package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/roffe/canbutton"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Send the configured frame on every button press",
	Long:  `Runs the event loop: every press (enter on stdin or SIGUSR1) enqueues the outbound frame, inbound frames matching the filter are logged.`,
	RunE:  runE,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runE(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	pf := cmd.Flags()

	controllerName, _ := pf.GetString(flagController)
	port, _ := pf.GetString(flagPort)
	baudrate, _ := pf.GetInt(flagBaudrate)
	canRate, _ := pf.GetFloat64(flagCANRate)
	txDepth, _ := pf.GetInt(flagTxDepth)
	rxDepth, _ := pf.GetInt(flagRxDepth)
	id, _ := pf.GetUint32(flagID)
	extended, _ := pf.GetBool(flagExtended)
	filterID, _ := pf.GetUint32(flagFilterID)
	filterMask, _ := pf.GetUint32(flagFilterMask)
	debug, _ := pf.GetBool(flagDebug)

	if requiresSerialPort(controllerName) && port == "*" {
		selected, err := selectPort()
		if err != nil {
			return err
		}
		port = selected
	}

	ctrl, err := canbutton.NewController(controllerName, &canbutton.Config{
		Port:         port,
		PortBaudrate: baudrate,
		CANRate:      canRate,
		TxQueueDepth: txDepth,
		Debug:        debug,
	})
	if err != nil {
		return err
	}

	if err := ctrl.Open(ctx); err != nil {
		return fmt.Errorf("CAN device not ready: %w", err)
	}
	defer ctrl.Close()

	filter := canbutton.Filter{ID: filterID, Mask: filterMask, Extended: extended}
	rx, err := ctrl.Subscribe(filter, rxDepth)
	if err != nil {
		return fmt.Errorf("failed to add filter: %w", err)
	}

	frame := canbutton.CANFrame{Identifier: id, Extended: extended, Direction: canbutton.Outgoing}
	edge := canbutton.NewEdgeSource()
	dispatcher := canbutton.NewDispatcher(ctrl, edge, rx, frame)

	log.Println(dispatcher.Banner())
	log.Println("send by pressing enter or sending SIGUSR1")

	go readEdges(ctx, edge)

	errg, gctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		return dispatcher.Run(gctx)
	})
	errg.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case ev, ok := <-ctrl.Event():
				if !ok {
					return nil
				}
				log.Println(ev.String())
			}
		}
	})
	errg.Go(func() error {
		select {
		case <-gctx.Done():
			return gctx.Err()
		case err := <-ctrl.Err():
			if err != nil {
				return err
			}
			return nil
		}
	})
	errg.Go(func() error {
		sigs := edgeSignals()
		if len(sigs) == 0 {
			<-gctx.Done()
			return gctx.Err()
		}
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, sigs...)
		defer signal.Stop(sigChan)
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-sigChan:
				edge.Trigger()
			}
		}
	})

	if err := errg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// readEdges turns every line on stdin into one edge trigger. Runs
// detached since a blocked stdin read cannot be cancelled.
func readEdges(ctx context.Context, edge *canbutton.EdgeSource) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		edge.Trigger()
	}
}

func requiresSerialPort(controllerName string) bool {
	for _, info := range canbutton.ListControllers() {
		if strings.EqualFold(info.Name, controllerName) {
			return info.RequiresSerialPort
		}
	}
	return false
}
