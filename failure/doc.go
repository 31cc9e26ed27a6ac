// Package failure defines the closed taxonomy of stage rejection reasons and
// the classification used to decide whether a rejection is worth retrying.
//
// Every rejected stage result carries exactly one Reason. Reasons map onto a
// coarser Class:
//
//	EXECUTION_FAILED, TIMEOUT     -> ClassExecution (retryable)
//	SCHEMA_VALIDATION_FAILED      -> ClassSchema
//	POLICY_VIOLATION              -> ClassPolicy
//	anything else                 -> ClassUnknown
//
// Schema and policy failures describe a defect in generated content. Invoking
// the generator again with identical inputs reproduces the same defect class,
// so only execution-class failures are retried.
package failure
