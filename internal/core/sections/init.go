// Package sections registers the entry form sections with the core registry.
// Import this package to ensure all sections are registered.
package sections

// Each section file uses init() to register its sections.
