// Package influxdb records rule walk timings in InfluxDB.
//
// Each walk step becomes a point in the rulewalk_steps measurement, tagged
// with the rule UID, the step name and its outcome. A finished walk adds one
// rulewalk_walks point carrying the matched and completed rule counts.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics are optional
//	}
//	defer client.Close()
//
//	client.WriteWalkStep("night-mode", "disable", "ok", 12*time.Millisecond, time.Now())
//
// Writes are batched per influxdb.batch_size and influxdb.flush_interval and
// never block a walk.
package influxdb
