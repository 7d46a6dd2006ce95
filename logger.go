// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package godfu

import (
	"github.com/sirupsen/logrus"
)

var (
	logger *logrus.Logger = nil
)

func init() {
	logger = logrus.New()
}

// SetLogger replaces the package-level logger used by the engine. A caller
// embedding godfu into a larger CLI typically passes in its own configured
// logrus.Logger here.
func SetLogger(loggerInstance *logrus.Logger) {
	logger = loggerInstance
}
