package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/invosuite/billdesk/internal/testinfra"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	var showHelp bool
	flag.BoolVar(&showHelp, "h", false, "show help")
	var envFilename string
	flag.StringVar(&envFilename, "f", "", "path to the .env file")
	flag.Parse()

	usage := `
Run the billdesk testcontainer stack with the environment variables from the .env file.

Usage:

testcontainers [-h] [-f ENV_FILE_PATH]

ENV_FILE_PATH: path to the .env file

example
  testcontainers -f /path/to/something/.env
`
	if showHelp {
		fmt.Println(usage)
		return
	}

	if envFilename != "" {
		logrus.WithField("file", envFilename).Info("loading environment variables")
		if err := godotenv.Load(envFilename); err != nil {
			logrus.WithError(err).Fatal("failed to load environment variables")
		}
	} else {
		logrus.Info("no environment file specified, using current environment variables")
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGTSTP, syscall.SIGQUIT)

	var stack *testinfra.Stack
	go func() {
		var err error
		stack, err = testinfra.CreateStack(nil)
		if err != nil {
			logrus.WithError(err).Fatal("failed to create test containers")
		}
	}()

	sig := <-sigs
	logrus.WithField("signal", sig).Info("terminating test containers")
	if stack != nil {
		stack.Terminate(nil)
	}
}
