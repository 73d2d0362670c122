// Package histoml implements a classification protocol for typing breast
// tumors as ductal or lobular carcinoma from gene expression profiles.
//
// The library is organized as small composable packages:
//
//   - dataset: the fixed two-class expression table and stratified splitting
//   - preprocessing: robust z-score scaling with outlier capping
//   - resample: SMOTE oversampling of the minority subtype
//   - neighbors, linear_model, svm, neural: the four model families
//   - modelselection: cross-validation folds and hyperparameter sweeps
//   - metrics: confusion-matrix statistics (accuracy, Cohen's kappa, AUC)
//   - ensemble: accuracy-weighted diagnostic voting
//   - pipeline: the end-to-end protocol tying everything together
//
// The cmd/histoml binary runs the pipeline on a CSV export; see
// examples/ for library-level usage.
package histoml
