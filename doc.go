// Package gateway is a financial back-office integration gateway.
//
// It connects banks, ERPs, CRMs, project management tools and message
// brokers through one connector contract, and records every connector
// operation in an operation log.
//
// # Architecture
//
// Connectors are created by type from a registry and share the lifecycle
// implemented in pkg/connector/base: connect, disconnect, test, sync and
// send. Every call writes exactly one operation log entry, including the
// implicit connect made when an operation runs on a disconnected connector.
//
// Connector types:
//
//	kafka, rabbitmq, activemq  - message brokers (pkg/connector/messaging)
//	crm, pm, banking, erp      - vendor HTTP APIs (pkg/connector/transport)
//	custom                     - user plugins (pkg/connector/custom, pkg/plugin)
//
// The banking and ERP modules in pkg/integration sit on top of a connector
// and turn raw vendor records into typed results: transactions, balances,
// payments, reconciliation reports and financial documents.
//
// # Quick Start
//
//	gateway import connectors.yaml
//	gateway test rbc
//	gateway banking reconcile rbc --account CHK-001 --from 2024-01-01
//	gateway logs --connector rbc --limit 10
//
// Settings are read from the file given with --config and from GATEWAY_*
// environment variables. Connector configurations, jobs and (by default)
// the operation log live in SQLite or PostgreSQL; the operation log can
// also be kept in MongoDB.
//
// # Key Packages
//
//	pkg/connector    - connector contract, base lifecycle, registry and connectors
//	pkg/integration  - banking and ERP modules
//	pkg/plugin       - plugin contract, builtin plugins and the interpreter
//	pkg/oplog        - operation log entries, recorder and in-memory store
//	pkg/store        - SQL storage for configs, jobs and logs
//	pkg/config       - connector configs and process settings
//	pkg/errors       - typed errors shared by every package
//	internal/gateway - the application service behind cmd/gateway
package gateway
