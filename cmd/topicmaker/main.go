package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/niksmo/storefront/config"
	"github.com/niksmo/storefront/internal/adapter"
	"github.com/niksmo/storefront/pkg/sigctx"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	partitions        = 3
	replicationFactor = 3
	cleanupDelete     = "delete"
	retention         = 7 * 24 * time.Hour
)

func main() {
	sigCtx, closeApp := sigctx.NotifyContext()
	defer closeApp()

	cfg := config.Load()
	if len(cfg.Broker.SeedBrokers) == 0 {
		printFail(errors.New("broker.seed_brokers is empty"))
		os.Exit(2)
	}

	opts, err := clientOpts(cfg)
	if err != nil {
		printFail(err)
		os.Exit(2)
	}
	cl := createClient(opts)
	defer cl.Close()

	printStart(cfg)
	defer printComplete(time.Now())

	err = makeTopics(
		sigCtx, cl, topicConfig(cleanupDelete, retention),
		cfg.Broker.ClientEventsTopic,
	)
	if err != nil {
		printFail(err)
		return
	}
}

// clientOpts dials the brokers the way the storefront producer does,
// with mutual TLS when broker.tls is configured.
func clientOpts(cfg config.Config) ([]kgo.Opt, error) {
	opts := []kgo.Opt{kgo.SeedBrokers(cfg.Broker.SeedBrokers...)}

	tlsFiles := cfg.Broker.TLS
	if !tlsFiles.Enabled() {
		return opts, nil
	}
	tlsConfig, err := adapter.MakeTLSConfig(tlsFiles.CA, tlsFiles.Cert, tlsFiles.Key)
	if err != nil {
		return nil, err
	}
	return append(opts, kgo.DialTLSConfig(tlsConfig)), nil
}

func createClient(opts []kgo.Opt) *kadm.Client {
	cl, err := kadm.NewOptClient(opts...)
	if err != nil {
		panic(err) // develop mistake
	}
	return cl
}

func topicConfig(cleanupPolicy string, retention time.Duration) map[string]*string {
	minISR := "1"
	retentionMs := fmt.Sprint(retention.Milliseconds())
	return map[string]*string{
		"cleanup.policy":      &cleanupPolicy,
		"min.insync.replicas": &minISR,
		"retention.ms":        &retentionMs,
	}
}

func makeTopics(
	ctx context.Context, cl *kadm.Client, config map[string]*string, topics ...string,
) error {
	responses, err := cl.CreateTopics(
		ctx,
		partitions,
		replicationFactor,
		config,
		topics...,
	)
	if err != nil {
		return err
	}

	var errs []error
	for _, res := range responses.Sorted() {
		err := res.Err
		if err != nil {
			if errors.Is(res.Err, kerr.TopicAlreadyExists) {
				fmt.Printf("topic: %q already exists\n", res.Topic)
			} else {
				errs = append(errs, err)
			}
			continue
		}
		fmt.Printf("topic: %q successfully created\n", res.Topic)
	}

	return errors.Join(errs...)
}

func printStart(cfg config.Config) {
	fmt.Printf("initializing topics...\n\t- %q\n\n", cfg.Broker.ClientEventsTopic)
}

func printComplete(start time.Time) {
	fmt.Printf("\ncomplete in %s\n", time.Since(start))
}

func printFail(err error) {
	fmt.Printf("failed to create topics: \n%s\n", err)
}
