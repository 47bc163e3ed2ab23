package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var subjectsScanned = promauto.NewCounter(prometheus.CounterOpts{
	Name: "mastowatch_subjects_scanned_total",
	Help: "Number of subjects run through rule evaluation",
})

var evidenceProduced = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mastowatch_evidence_total",
	Help: "Number of rule matches, by rule name",
}, []string{"rule"})

var detectorErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mastowatch_detector_errors_total",
	Help: "Number of detector failures causing a rule skip, by detector type",
}, []string{"detector"})

var suppressedActions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mastowatch_actions_suppressed_total",
	Help: "Number of actions suppressed before dispatch, by reason",
}, []string{"reason"})

var actionsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mastowatch_actions_dispatched_total",
	Help: "Number of enforcement actions dispatched, by action type and result",
}, []string{"action", "result"})
