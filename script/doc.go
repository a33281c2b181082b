// Package script loads importers and custom functions written in JavaScript
// and runs them in an embedded QuickJS VM.
//
// A script defines the globals importers and functions:
//
//	var importers = [
//		function (file, prev) {
//			if (file !== "theme") return null;
//			return {contents: "a { color: blue }"};
//		}
//	];
//
//	var functions = {
//		"double($x)": function (x) { return sass.number(x._value * 2, x._unit); }
//	};
//
// Helpers are synchronous. Arguments arrive in the serialized value shape
// and the sass global builds return values. Plain booleans, numbers and
// strings are converted. A thrown exception fails the helper with its
// message. console.log, console.warn and console.error go to the package
// logger.
package script
