//go:build linux
// +build linux

// bthost-scan claims a local controller, runs LE discovery and prints
// what it finds. A YAML profile can narrow the results and the device
// cache can be persisted across runs.
package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
	yaml "gopkg.in/yaml.v2"

	"github.com/rigado/bthost"
	"github.com/rigado/bthost/adv"
	"github.com/rigado/bthost/gap"
	"github.com/rigado/bthost/hci/socket"
)

// scanProfile is the YAML scan configuration.
type scanProfile struct {
	Name         string `yaml:"name"`
	Connectable  *bool  `yaml:"connectable"`
	RSSI         *int8  `yaml:"rssi"`
	Manufacturer *int   `yaml:"manufacturer"`
	Services     []int  `yaml:"services"`
}

func main() {
	app := cli.NewApp()
	app.Name = "bthost-scan"
	app.Usage = "discover LE devices through a local controller"
	app.Flags = []cli.Flag{
		cli.IntFlag{Name: "device, d", Value: -1, Usage: "HCI device index, -1 for first available"},
		cli.DurationFlag{Name: "duration, t", Value: 10 * time.Second, Usage: "how long to scan"},
		cli.StringFlag{Name: "profile, p", Usage: "YAML scan profile"},
		cli.StringFlag{Name: "cache", Usage: "device cache file to load and save"},
		cli.BoolFlag{Name: "verbose, v", Usage: "debug logging"},
	}
	app.Action = scan

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func scan(c *cli.Context) error {
	if c.Bool("verbose") {
		bthost.SetLogLevelMax()
	}

	filter, err := loadProfile(c.String("profile"))
	if err != nil {
		return err
	}

	dev, err := socket.NewDevice(c.Int("device"))
	if err != nil {
		return errors.Wrap(err, "can't open controller")
	}

	a := gap.NewAdapter(dev)
	defer a.ShutDown()

	if path := c.String("cache"); path != "" {
		if f, err := os.Open(path); err == nil {
			if err := a.DeviceCache().Import(f); err != nil {
				fmt.Fprintln(os.Stderr, "cache import:", err)
			}
			f.Close()
		}
	}

	initDone := make(chan error, 1)
	if err := a.Initialize(func(err error) { initDone <- err }); err != nil {
		return errors.Wrap(err, "can't initialize adapter")
	}
	if err := <-initDone; err != nil {
		return errors.Wrap(err, "adapter init")
	}
	fmt.Printf("controller %s ready (HCI v%d)\n", a.State().Address, a.State().HCIVersion)

	var session *gap.DiscoverySession
	started := make(chan error, 1)
	a.Discovery().StartDiscovery(filter, func(s *gap.DiscoverySession, err error) {
		session = s
		started <- err
	})
	if err := <-started; err != nil {
		return err
	}
	session.SetResultCallback(printResult)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(c.Duration("duration")):
	case <-sig:
	}
	session.Stop()

	if path := c.String("cache"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrap(err, "can't write cache")
		}
		defer f.Close()
		if err := a.DeviceCache().Export(f); err != nil {
			return err
		}
	}
	return nil
}

func loadProfile(path string) (*gap.DiscoveryFilter, error) {
	if path == "" {
		return nil, nil
	}
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "can't read profile")
	}
	var p scanProfile
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, errors.Wrap(err, "can't parse profile")
	}

	f := &gap.DiscoveryFilter{}
	if p.Name != "" {
		f.SetNameSubstring(p.Name)
	}
	if p.Connectable != nil {
		f.SetConnectable(*p.Connectable)
	}
	if p.RSSI != nil {
		f.SetRSSI(*p.RSSI)
	}
	if p.Manufacturer != nil {
		f.SetManufacturerCode(uint16(*p.Manufacturer))
	}
	if len(p.Services) > 0 {
		uuids := make([]adv.UUID, 0, len(p.Services))
		for _, s := range p.Services {
			uuids = append(uuids, adv.UUID16(uint16(s)))
		}
		f.SetServiceUUIDs(uuids)
	}
	return f, nil
}

func printResult(r gap.ScanResult) {
	name := ""
	if rec, err := adv.ParseRecords(r.Data); err == nil {
		name = rec.LocalName()
	}
	fmt.Printf("%s rssi %4d  %q\n", r.Address, r.RSSI, name)
}
