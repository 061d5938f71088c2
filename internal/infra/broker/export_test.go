//go:build unit

package broker

var AwaitConfirm = awaitConfirm
