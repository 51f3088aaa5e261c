// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package logger provides the subsystem-tagged loggers used across xaid.
package logger

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/btcsuite/btclog"
)

// logWriter implements an io.Writer that outputs to standard output.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	return os.Stdout.Write(p)
}

// Loggers per subsystem. A single backend logger is created and all
// subsystem loggers created from it write through it.
var (
	backendLog = btclog.NewBackend(logWriter{})

	xtxnLog = backendLog.Logger("XTXN") // transaction model (C2)
	utxoLog = backendLog.Logger("UTXO") // utxo manager (C3)
	ncetLog = backendLog.Logger("NCET") // nonce tracker (C4)
	mpolLog = backendLog.Logger("MPOL") // mempool (C5)
	blokLog = backendLog.Logger("BLOK") // block + header (C6)
	chndLog = backendLog.Logger("CHND") // chain store (C7)
	minrLog = backendLog.Logger("MINR") // miner (C8)
	xvldLog = backendLog.Logger("XVLD") // transaction validator (C9)
	spvcLog = backendLog.Logger("SPVC") // light-client service (C10)
	syncLog = backendLog.Logger("SYNC") // chunked sync (C11)
	apisLog = backendLog.Logger("APIS") // API/boundary adapters (C12)
	cnfgLog = backendLog.Logger("CNFG") // configuration
	xaidLog = backendLog.Logger("XAID") // top-level daemon
)

// SubsystemTags is an enum of all subsystem tags.
var SubsystemTags = struct {
	XTXN,
	UTXO,
	NCET,
	MPOL,
	BLOK,
	CHND,
	MINR,
	XVLD,
	SPVC,
	SYNC,
	APIS,
	CNFG,
	XAID string
}{
	XTXN: "XTXN",
	UTXO: "UTXO",
	NCET: "NCET",
	MPOL: "MPOL",
	BLOK: "BLOK",
	CHND: "CHND",
	MINR: "MINR",
	XVLD: "XVLD",
	SPVC: "SPVC",
	SYNC: "SYNC",
	APIS: "APIS",
	CNFG: "CNFG",
	XAID: "XAID",
}

// subsystemLoggers maps each subsystem identifier to its associated logger.
var subsystemLoggers = map[string]btclog.Logger{
	SubsystemTags.XTXN: xtxnLog,
	SubsystemTags.UTXO: utxoLog,
	SubsystemTags.NCET: ncetLog,
	SubsystemTags.MPOL: mpolLog,
	SubsystemTags.BLOK: blokLog,
	SubsystemTags.CHND: chndLog,
	SubsystemTags.MINR: minrLog,
	SubsystemTags.XVLD: xvldLog,
	SubsystemTags.SPVC: spvcLog,
	SubsystemTags.SYNC: syncLog,
	SubsystemTags.APIS: apisLog,
	SubsystemTags.CNFG: cnfgLog,
	SubsystemTags.XAID: xaidLog,
}

// Get returns the logger of a specific subsystem.
func Get(tag string) (logger btclog.Logger, ok bool) {
	logger, ok = subsystemLoggers[tag]
	return
}

// SetLogLevel sets the logging level for the provided subsystem. Invalid
// subsystems are ignored.
func SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for all subsystem loggers to the passed
// level.
func SetLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		SetLogLevel(subsystemID, logLevel)
	}
}

// SupportedSubsystems returns a sorted slice of the supported subsystems.
func SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)
	return subsystems
}

// ParseAndSetDebugLevels attempts to parse the specified debug level string
// and sets the levels accordingly. An appropriate error is returned if
// anything is invalid.
func ParseAndSetDebugLevels(debugLevel string) error {
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if !validLogLevel(debugLevel) {
			return fmt.Errorf("the specified debug level [%s] is invalid", debugLevel)
		}
		SetLogLevels(debugLevel)
		return nil
	}

	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return fmt.Errorf("the specified debug level contains an invalid subsystem/level pair [%s]", logLevelPair)
		}

		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		if _, exists := Get(subsysID); !exists {
			return fmt.Errorf("the specified subsystem [%s] is invalid -- supported subsystems %s",
				subsysID, strings.Join(SupportedSubsystems(), ", "))
		}

		if !validLogLevel(logLevel) {
			return fmt.Errorf("the specified debug level [%s] is invalid", logLevel)
		}

		SetLogLevel(subsysID, logLevel)
	}

	return nil
}

func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical":
		return true
	}
	return false
}
