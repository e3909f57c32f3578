// Package connectors discovers source documents. The filesystem connector
// walks a local folder of rulings and watches it for changes.
package connectors
