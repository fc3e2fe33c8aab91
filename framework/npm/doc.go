// Package npm downloads framework packages from an npm registry and installs
// them into the UI5 data directory.
//
// The on-disk layout is
//
//	<dataDir>/framework/packages/<name>/<version>/package.json
//	<dataDir>/framework/locks/package-<name>@<version>.lock
//
// Scoped package names keep their scope directory, so @openui5/sap.m 1.120.0
// lives in framework/packages/@openui5/sap.m/1.120.0. The slash of a scoped
// name is replaced by a dash in lock file names.
package npm
