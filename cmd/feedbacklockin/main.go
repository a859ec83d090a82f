package main

/*------------------------------------------------------------------
 *
 * Purpose:	Main program for the multi-channel feedback lock-in
 *		amplifier control system.
 *
 *------------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	lockin "github.com/dgglab/feedbacklockin/src"
	"github.com/spf13/pflag"
)

const version = "0.1.0"

func main() {
	settingsPath := pflag.StringP("settings-file", "s", "dev.ini", "Settings file path.")
	showVersion := pflag.BoolP("version", "v", false, "Print version and exit.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "feedbacklockin - a multi-channel digital feedback lock-in amplifier control system.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: feedbacklockin [options]\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *showVersion {
		fmt.Printf("feedbacklockin version %s\n", version)
		os.Exit(0)
	}

	cfg, err := lockin.LoadConfig(*settingsPath)
	if err != nil {
		lockin.Log.Error("failed to load settings", "path", *settingsPath, "err", err)
		os.Exit(1)
	}

	engine := lockin.NewFeedbackEngine(cfg.DaqChannels, cfg.Points, cfg.Frequency)
	engine.PI().SetKi(cfg.Ki)
	engine.PI().SetKp(cfg.Kp)
	engine.SetAveraging(lockin.AvgSliding, cfg.Averaging)

	var daq lockin.DaqPort
	if cfg.DaqDummy {
		daq = lockin.NewSimulationDaqPort(cfg.DaqChannels, cfg.Points, 1)
	} else {
		daq = lockin.NewHardwareDaqPort(cfg.DaqChannels, cfg.Points)
	}

	daq.SetChannels(cfg.DaqInputChannels, cfg.DaqOutputChannels)
	daq.SetClocks(cfg.DaqOutputClock, cfg.DaqOutputClockChan, cfg.DaqInputClockChan)
	daq.SetFrequency(cfg.Frequency)

	if err := daq.Init(); err != nil {
		lockin.Log.Error("DAQ init failed", "err", err)
		os.Exit(1)
	}

	if err := daq.Start(); err != nil {
		lockin.Log.Error("DAQ start failed", "err", err)
		os.Exit(1)
	}

	cp := lockin.NewControlPlane(engine)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var tcpServer *lockin.TcpServer
	if cfg.TcpEnabled {
		tcpServer = lockin.NewTcpServer(cp, cfg.TcpPort)
		if err := tcpServer.Start(); err != nil {
			lockin.Log.Error("TCP server failed to start, continuing without it", "err", err)
			tcpServer = nil
		} else {
			lockin.AnnounceDnsSd(ctx, cfg.TcpPort, "")
		}
	}

	lockin.Log.Info("feedbacklockin running",
		"channels", cfg.DaqChannels, "points", cfg.Points, "frequency", cfg.Frequency,
		"dummy", cfg.DaqDummy, "tcp", cfg.TcpEnabled)

	loop := lockin.NewRunLoop(daq, engine, cp)
	loop.Run(ctx)

	if tcpServer != nil {
		tcpServer.Stop()
	}

	daq.Stop()
}
