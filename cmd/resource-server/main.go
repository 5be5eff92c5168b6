package main

import (
	"github.com/sirupsen/logrus"

	"github.com/code-payments/x402-resource-server/pkg/http/app"
)

func main() {
	if err := app.Run(newResourceServerApp(), app.WithMiddleware(app.RecoverPanics)); err != nil {
		logrus.WithError(err).Fatal("error running resource server")
	}
}
