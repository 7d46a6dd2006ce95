// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"gopkg.in/yaml.v2"

	"github.com/bbnote/godfu"
	"github.com/bbnote/godfu/firmware"
	"github.com/bbnote/godfu/memory"
	"github.com/bbnote/godfu/usbtransport"
)

var logger *logrus.Logger

// deviceProfile overrides fields the connected device's functional
// descriptor under-reports, a quirk real DFU bootloaders are known to
// have for TransferSize in particular.
type deviceProfile struct {
	TransferSize uint16 `yaml:"transfer_size,omitempty"`
}

func initLogger(level logrus.Level) {
	formatter := &prefixed.TextFormatter{
		DisableColors:   false,
		TimestampFormat: "15:04:05",
		FullTimestamp:   true,
		ForceFormatting: true,
	}

	logger = logrus.New()
	logger.SetFormatter(formatter)
	logger.SetOutput(os.Stdout)
	logger.SetLevel(level)
}

func parseVidPid(s string) (gousb.ID, gousb.ID, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("-d must be <vid>:<pid> in hex, got %q", s)
	}

	vid, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("bad vendor id %q: %w", parts[0], err)
	}

	if parts[1] == "*" {
		return gousb.ID(vid), usbtransport.AnyID, nil
	}

	pid, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("bad product id %q: %w", parts[1], err)
	}

	return gousb.ID(vid), gousb.ID(pid), nil
}

func parseVersion(s string) (godfu.Version, error) {
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 {
		return godfu.Version{}, fmt.Errorf("-v must be <major>.<minor>, got %q", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return godfu.Version{}, fmt.Errorf("bad major version %q: %w", parts[0], err)
	}

	minor, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return godfu.Version{}, fmt.Errorf("bad minor version %q: %w", parts[1], err)
	}

	return godfu.Version{Major: byte(major), Minor: byte(minor)}, nil
}

func loadProfile(path string) (deviceProfile, error) {
	f, err := ioutil.ReadFile(path)
	if err != nil {
		return deviceProfile{}, err
	}

	var p deviceProfile
	if err := yaml.Unmarshal(f, &p); err != nil {
		return deviceProfile{}, err
	}

	return p, nil
}

type consoleObserver struct{}

func (consoleObserver) OnProgress(transferred, total int) {
	if total <= 0 {
		logger.Infof("transferred %d bytes", transferred)
		return
	}

	logger.Infof("progress: %d/%d bytes (%d%%)", transferred, total, transferred*100/total)
}

func (consoleObserver) OnDeviceError(message string) {
	logger.Errorf("device reported: %s", message)
}

func run() error {
	flagImage := flag.String("i", "", "Firmware image to download (Intel HEX, S-record, or .dfu)")
	flagDevice := flag.String("d", "", "Device to open, <vid>:<pid> in hex (pid may be '*')")
	flagVersion := flag.String("v", "", "Expected device DFU version <major>.<minor> (ignored for .dfu images)")
	flagProfile := flag.String("profile", "", "Device profile yaml file overriding descriptor fields")
	flagLogLevel := flag.Int("loglevel", int(logrus.InfoLevel), "Logging verbosity [0-6]")

	buf := new(bytes.Buffer)
	yaml.NewEncoder(buf).Encode(deviceProfile{})
	flag.Lookup("profile").Usage += "\n\n" + buf.String()

	flag.Parse()

	initLogger(logrus.Level(*flagLogLevel))
	godfu.SetLogger(logger)
	usbtransport.SetLogger(logger)

	if *flagImage == "" || *flagDevice == "" {
		flag.Usage()
		return fmt.Errorf("-i and -d are required")
	}

	data, err := ioutil.ReadFile(*flagImage)
	if err != nil {
		return err
	}

	vid, pid, err := parseVidPid(*flagDevice)
	if err != nil {
		return err
	}

	var expectVersion *godfu.Version
	if *flagVersion != "" {
		v, err := parseVersion(*flagVersion)
		if err != nil {
			return err
		}
		expectVersion = &v
	}

	var profile deviceProfile
	if *flagProfile != "" {
		profile, err = loadProfile(*flagProfile)
		if err != nil {
			return fmt.Errorf("failed to load device profile: %w", err)
		}
	}

	ctx := usbtransport.NewContext()
	defer ctx.Close()

	transport, candidate, ident, err := ctx.OpenDevice(vid, pid)
	if err != nil {
		return err
	}
	defer transport.Close()

	descriptor := candidate.Descriptor
	if profile.TransferSize != 0 {
		descriptor = descriptor.WithTransferSize(profile.TransferSize)
	}

	logger.Infof("found device %04x:%04x, interface %d, dfu version %s",
		ident.VendorID, ident.ProductID, candidate.Interface, ident.DfuVersion)

	format := firmware.DetectFormat(data)

	if format != firmware.FormatDfuFile && expectVersion != nil && *expectVersion != ident.DfuVersion {
		return &godfu.VersionMismatchError{
			FileVersion:   uint16(expectVersion.Major)<<8 | uint16(expectVersion.Minor),
			DeviceVersion: uint16(ident.DfuVersion.Major)<<8 | uint16(ident.DfuVersion.Minor),
		}
	}

	device := godfu.NewDevice(transport, candidate.Interface, descriptor, ident)
	obs := consoleObserver{}

	switch format {
	case firmware.FormatDfuFile:
		return downloadDfuFile(device, data, obs)
	case firmware.FormatIntelHex:
		mem, err := firmware.DecodeIntelHex(bytes.NewReader(data))
		if err != nil {
			return err
		}
		return downloadPlain(device, mem, obs)
	case firmware.FormatSRecord:
		mem, err := firmware.DecodeSRecord(bytes.NewReader(data))
		if err != nil {
			return err
		}
		return downloadPlain(device, mem, obs)
	default:
		return godfu.NewFormatError("unrecognized firmware image format")
	}
}

// downloadPlain sends the lowest-addressed segment of a decoded raw image
// as one plain DFU 1.1 download (device addressing is implicit on this
// path; there is no SetAddress to carry a per-segment base). Any further
// segments of the image are not sent.
func downloadPlain(d *godfu.Device, mem *memory.RawMemory, obs godfu.Observer) error {
	seg, ok := mem.First()
	if !ok {
		return godfu.NewFormatError("firmware image has no data")
	}

	if err := godfu.ResetToIdle(d, obs); err != nil {
		return err
	}

	if err := godfu.Download(d, seg.Data, obs); err != nil {
		return err
	}

	return godfu.Manifest(d)
}

// plainDfuVersion is the bcdDFU 0x0100 value firmware decodes a plain DFU
// 1.1 file's identification to; it carries none of the DfuSe target/element
// addressing DownloadDfuSe requires, so it must go through Download instead.
var plainDfuVersion = godfu.Version{Major: 1, Minor: 0}

func downloadDfuFile(d *godfu.Device, data []byte, obs godfu.Observer) error {
	file, err := firmware.DecodeDfuFile(data)
	if err != nil {
		return err
	}

	if d.Identification().VendorID != file.Ident.VendorID || d.Identification().ProductID != file.Ident.ProductID {
		logger.Warnf("file identifies %04x:%04x, device is %04x:%04x; proceeding anyway",
			file.Ident.VendorID, file.Ident.ProductID, d.Identification().VendorID, d.Identification().ProductID)
	}

	if file.Ident.DfuVersion == plainDfuVersion {
		for _, image := range file.Images {
			return downloadPlain(d, &image.RawMemory, obs)
		}
		return godfu.NewFormatError("firmware image has no data")
	}

	if err := godfu.ResetToIdle(d, obs); err != nil {
		return err
	}

	for alt, image := range file.Images {
		if err := godfu.DownloadDfuSe(d, alt, image, obs); err != nil {
			return err
		}
	}

	return godfu.Manifest(d)
}

func main() {
	if err := run(); err != nil {
		if logger != nil {
			logger.Error(err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}

	os.Exit(0)
}
