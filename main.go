package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"io"
	"os"
	"os/signal"
	"strconv"

	"github.com/RoanBrand/ActiveLookProtocol/blelink"
	"github.com/RoanBrand/ActiveLookProtocol/comwrapper"
	"github.com/RoanBrand/ActiveLookProtocol/config"
	"github.com/RoanBrand/ActiveLookProtocol/protocol"
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/bmp"
)

const usage = `usage: activelook [-config FILE] COMMAND [ARGS]

commands:
  version | battery | settings | cfg-list | cfg-free | img-list | font-list | clear
  text X Y TEXT
  img-save ID FILE.bmp [4bpp|1bpp|4bpp-heatshrink|4bpp-heatshrink-save-comp]
  img-stream X Y FILE.bmp
  watch
`

type link interface {
	protocol.Link
	Close() error
}

func main() {
	cfgPath := flag.String("config", "activelook.yaml", "configuration file")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	cfg := config.Default()
	if _, err := os.Stat(*cfgPath); err == nil {
		if cfg, err = config.Load(*cfgPath); err != nil {
			logrus.WithError(err).Fatal("Bad configuration")
		}
	}
	logrus.SetLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, flag.Args(), os.Stdout); err != nil {
		logrus.WithError(err).Fatal(flag.Arg(0))
	}
}

func run(ctx context.Context, cfg *config.Settings, args []string, out io.Writer) error {
	l, d, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer l.Close()
	defer d.Close()
	return execute(ctx, d, args, out)
}

func connect(ctx context.Context, cfg *config.Settings) (link, *protocol.Dispatcher, error) {
	log := logrus.StandardLogger()
	switch cfg.Link {
	case config.LinkBLE:
		dev, err := linux.NewDevice()
		if err != nil {
			return nil, nil, errors.Wrap(err, "BLE init")
		}
		ble.SetDefaultDevice(dev)
		l, err := blelink.Dial(ctx, blelink.Config{
			Address:              cfg.BLE.Address,
			ConnectTimeout:       cfg.BLE.ConnectTimeout,
			MTU:                  cfg.BLE.MTU,
			WriteWithoutResponse: cfg.BLE.WriteWithoutResponse,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		d := protocol.NewDispatcher(l, cfg.ProtocolConfig(), log)
		if err := l.Attach(d); err != nil {
			l.Close()
			return nil, nil, err
		}
		d.Start()
		return l, d, nil
	default:
		l, err := comwrapper.Open(ctx, comwrapper.Config{
			Name:          cfg.Serial.Port,
			Baud:          cfg.Serial.Baud,
			ReadTimeout:   cfg.Serial.ReadTimeout,
			MTU:           cfg.Serial.MTU,
			RetryInterval: cfg.Serial.RetryInterval,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		d := protocol.NewDispatcher(l, cfg.ProtocolConfig(), log)
		l.Attach(d)
		d.Start()
		return l, d, nil
	}
}

func execute(ctx context.Context, d *protocol.Dispatcher, args []string, out io.Writer) error {
	show := func(v interface{}, err error) error {
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%+v\n", v)
		return nil
	}

	switch args[0] {
	case "version":
		return show(d.Version(ctx))
	case "battery":
		return show(d.Battery(ctx))
	case "settings":
		return show(d.Settings(ctx))
	case "cfg-list":
		return show(d.ConfigList(ctx))
	case "cfg-free":
		return show(d.ConfigFreeSpace(ctx))
	case "img-list":
		return show(d.ImageList(ctx))
	case "font-list":
		return show(d.FontList(ctx))
	case "clear":
		return d.Clear(ctx)
	case "text":
		if len(args) != 4 {
			return errors.New("text X Y TEXT")
		}
		x, y, err := coords(args[1], args[2])
		if err != nil {
			return err
		}
		return d.Text(ctx, x, y, protocol.RotationTopLR, 1, 15, args[3])
	case "img-save":
		if len(args) < 3 || len(args) > 4 {
			return errors.New("img-save ID FILE [format]")
		}
		id, err := strconv.ParseUint(args[1], 10, 8)
		if err != nil {
			return errors.Wrap(err, "image id")
		}
		f := protocol.ImgSave4bpp
		if len(args) == 4 {
			if f, err = protocol.ParseImgSaveFormat(args[3]); err != nil {
				return err
			}
		}
		img, err := loadBMP(args[2])
		if err != nil {
			return err
		}
		return d.SaveImage(ctx, uint8(id), img, f)
	case "img-stream":
		if len(args) != 4 {
			return errors.New("img-stream X Y FILE")
		}
		x, y, err := coords(args[1], args[2])
		if err != nil {
			return err
		}
		img, err := loadBMP(args[3])
		if err != nil {
			return err
		}
		return d.StreamImage(ctx, img, x, y, protocol.ImgStream1bpp)
	case "watch":
		unsubscribe := d.Subscribe(func(e protocol.Event) {
			fmt.Fprintf(out, "%T %+v\n", e, e)
		})
		defer unsubscribe()
		<-ctx.Done()
		return nil
	}
	return errors.Errorf("unknown command %q", args[0])
}

func coords(xs, ys string) (int16, int16, error) {
	x, err := strconv.ParseInt(xs, 10, 16)
	if err != nil {
		return 0, 0, errors.Wrap(err, "x")
	}
	y, err := strconv.ParseInt(ys, 10, 16)
	if err != nil {
		return 0, 0, errors.Wrap(err, "y")
	}
	return int16(x), int16(y), nil
}

func loadBMP(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := bmp.Decode(f)
	return img, errors.Wrapf(err, "decode %s", path)
}
