// Package scenario scores a forecast model in economic terms. For every
// (horizon, season, model) it runs the receding-horizon simulator twice,
// once deciding on the ground truth and once on the model forecast, and
// reports the difference of the two peak-demand costs as the Normalized Loss
// Equivalent (NLE).
package scenario
