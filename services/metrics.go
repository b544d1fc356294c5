package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	leadsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leads_created_total",
		Help: "Leads recorded, by form type and intake source.",
	}, []string{"form_type", "source"})

	loadsConverted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loads_converted_total",
		Help: "Leads converted into loads, by load type.",
	}, []string{"load_type"})

	emailsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emails_dispatched_total",
		Help: "Staff emails composed, by delivery outcome.",
	}, []string{"outcome"})
)

// Intake sources for leads_created_total.
const (
	SourcePublic  = "public"
	SourceManual  = "manual"
	SourceWizard  = "wizard"
	SourceContact = "contact"
)
