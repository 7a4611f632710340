// Package influxdb writes dispatch telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Client implements
// session.Recorder, so every data event the session processes becomes a
// "dispatch" point, and WriteStats records periodic "session_stats"
// snapshots.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	sess := session.New(transport, session.Options{Recorder: client})
//
// # Error Handling
//
// Writes are non-blocking. Batch failures are delivered to the callback
// set with SetOnError, wrapped in ErrWriteFailed. Connection and health
// check errors are returned directly.
package influxdb
