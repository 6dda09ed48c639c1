package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/urfave/cli/v2"
	cfg "reduction.dev/pinot/config"
	"reduction.dev/pinot/config/jsontemplate"
	"reduction.dev/pinot/connectors/pinot"
	"reduction.dev/pinot/logging"
)

const (
	formatJSON  = "json"
	formatProto = "proto"
)

func main() {
	app := &cli.App{
		Name:  "pinot",
		Usage: "Plan and inspect splits for a Pinot connector",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "minimum log level: debug, info, warn or error",
			},
		},
		Before: func(ctx *cli.Context) error {
			level, err := logging.ParseLevel(ctx.String("log-level"))
			if err != nil {
				return err
			}
			logging.SetLevel(level)
			slog.SetDefault(slog.New(logging.NewTextHandler()))
			return nil
		},
		Commands: []*cli.Command{{
			Name:  "plan",
			Usage: "Create the splits for a table scan",
			Flags: []cli.Flag{
				configFlag(),
				paramFlag(),
				tableFlag(),
				brokerQueryFlag(),
				&cli.StringFlag{
					Name:  "segment-query",
					Usage: "query each segment group directly on its server",
				},
				formatFlag(),
			},
			Action: func(ctx *cli.Context) error {
				config, err := loadConfig(ctx.String("config"), ctx.StringSlice("param"))
				if err != nil {
					return err
				}
				splits, err := config.NewSplitManager().Splits(ctx.Context, planRequest(ctx))
				if err != nil {
					return err
				}
				return writeSplits(ctx.App.Writer, splits, ctx.String("format"))
			},
		}, {
			Name:  "inspect",
			Usage: "Decode splits from stdin and print their fields",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx *cli.Context) error {
				splits, err := readSplits(os.Stdin, ctx.String("format"))
				if err != nil {
					return err
				}
				for _, s := range splits {
					fmt.Fprintln(ctx.App.Writer, s)
				}
				return nil
			},
		}, {
			Name:  "query",
			Usage: "Send a query to the broker through a broker split",
			Flags: []cli.Flag{configFlag(), paramFlag(), tableFlag(), brokerQueryFlag()},
			Action: func(ctx *cli.Context) error {
				if ctx.String("broker-query") == "" {
					return fmt.Errorf("--broker-query is required")
				}
				config, err := loadConfig(ctx.String("config"), ctx.StringSlice("param"))
				if err != nil {
					return err
				}
				splits, err := config.NewSplitManager().Splits(ctx.Context, planRequest(ctx))
				if err != nil {
					return err
				}

				runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt)
				defer stop()
				results, err := config.NewExecutor(nil).ExecuteAll(runCtx, splits)
				if err != nil {
					return err
				}
				for _, r := range results {
					fmt.Fprintln(ctx.App.Writer, string(r))
				}
				return nil
			},
		}},
	}

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "format",
		Value: formatJSON,
		Usage: "split encoding, one split per line: json or proto (base64)",
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "config",
		Usage:    "path to the connector configuration document",
		Required: true,
	}
}

func paramFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  "param",
		Usage: "set a config parameter as KEY=VALUE",
	}
}

func tableFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "table",
		Usage:    "the pinot table to plan",
		Required: true,
	}
}

func brokerQueryFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "broker-query",
		Usage: "push the whole query down to the broker",
	}
}

func loadConfig(path string, rawParams []string) (*cfg.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	params, err := parseParams(rawParams)
	if err != nil {
		return nil, err
	}
	c, err := cfg.Unmarshal(data, params)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("connector config validation error: %v", err)
	}
	return c, nil
}

func parseParams(raw []string) (*jsontemplate.Params, error) {
	params := jsontemplate.NewParams()
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q, expected KEY=VALUE", kv)
		}
		params.Set(key, value)
	}
	return params, nil
}

func planRequest(ctx *cli.Context) pinot.PlanRequest {
	req := pinot.PlanRequest{
		Table:        ctx.String("table"),
		SegmentQuery: ctx.String("segment-query"),
	}
	if q := ctx.String("broker-query"); q != "" {
		req.Broker = pinot.NewGeneratedQuery(pinot.GeneratedQueryParams{
			Table: req.Table,
			Query: q,
		})
	}
	return req
}

func writeSplits(w io.Writer, splits []*pinot.Split, format string) error {
	for _, s := range splits {
		var line string
		switch format {
		case formatJSON:
			data, err := json.Marshal(s)
			if err != nil {
				return err
			}
			line = string(data)
		case formatProto:
			data, err := s.MarshalProto()
			if err != nil {
				return err
			}
			line = base64.StdEncoding.EncodeToString(data)
		default:
			return fmt.Errorf("unknown split format %q", format)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func readSplits(r io.Reader, format string) ([]*pinot.Split, error) {
	var splits []*pinot.Split
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		switch format {
		case formatJSON:
			var s pinot.Split
			if err := json.Unmarshal(line, &s); err != nil {
				return nil, err
			}
			splits = append(splits, &s)
		case formatProto:
			data, err := base64.StdEncoding.DecodeString(string(line))
			if err != nil {
				return nil, fmt.Errorf("decode base64 split: %w", err)
			}
			s, err := pinot.UnmarshalProto(data)
			if err != nil {
				return nil, err
			}
			splits = append(splits, s)
		default:
			return nil, fmt.Errorf("unknown split format %q", format)
		}
	}
	return splits, scanner.Err()
}
