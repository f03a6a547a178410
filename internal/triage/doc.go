// Package triage runs support tickets through classification, knowledge base
// retrieval, reply drafting and the auto-close decision, recording an audit
// event for every stage.
package triage
