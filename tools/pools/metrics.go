package main

import "fmt"
import "net/http"

import "github.com/prometheus/client_golang/prometheus"
import "github.com/prometheus/client_golang/prometheus/promhttp"

import "github.com/theroutercompany/sydradb-sub002/malloc"
import "github.com/theroutercompany/sydradb-sub002/telemetry"

func servemetrics(mgr *malloc.Manager, addr string) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(telemetry.NewCollector("pools", mgr))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Printf("metrics server: %v\n", err)
	}
}
