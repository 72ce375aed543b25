/*
Package fields extracts key/value fields from a text field of a log entry and merges them back into the entry.

Two extraction modes are supported.
The default mode scans the text with a Pattern, which is permissive and will find pairs anywhere in free-form text.
Strict mode treats the text as a logfmt line and coerces unquoted numeric values.

In both modes fields that already exist in the target are left alone.
*/
package fields
