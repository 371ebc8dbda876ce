package lk220

import "sync/atomic"

// ConnectionMetrics contains atomic metrics for a Controller.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type ConnectionMetrics struct {
	// CmdSendCount indicates the number of commands written to the port.
	CmdSendCount atomic.Uint64
	// ReplyRecvCount indicates the number of completed transactions.
	ReplyRecvCount atomic.Uint64
	// TimeoutCount indicates the number of transactions that timed out.
	TimeoutCount atomic.Uint64
	// ParseErrCount indicates the number of replies that failed to parse.
	ParseErrCount atomic.Uint64
	// VerifyErrCount indicates the number of setter read-backs that did
	// not match the written value.
	VerifyErrCount atomic.Uint64
}

func (m *ConnectionMetrics) incCmdSendCount() {
	m.CmdSendCount.Add(1)
}

func (m *ConnectionMetrics) incReplyRecvCount() {
	m.ReplyRecvCount.Add(1)
}

func (m *ConnectionMetrics) incTimeoutCount() {
	m.TimeoutCount.Add(1)
}

func (m *ConnectionMetrics) incParseErrCount() {
	m.ParseErrCount.Add(1)
}

func (m *ConnectionMetrics) incVerifyErrCount() {
	m.VerifyErrCount.Add(1)
}
